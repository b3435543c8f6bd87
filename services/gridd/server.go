package gridd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gridchain/config"
	"gridchain/core/state"
	"gridchain/crypto"
	"gridchain/native/collectible"
	nativecommon "gridchain/native/common"
	"gridchain/native/grid"
	"gridchain/native/token"
	"gridchain/observability"
)

const maxBodyBytes = 1 << 20

// ServerConfig wires the HTTP surface.
type ServerConfig struct {
	Service       *Service
	Authenticator *Authenticator
	RateLimiter   *RateLimiter
	Audit         *AuditStore
	Hub           *Hub
	Logger        *slog.Logger
}

// Server exposes the economy over JSON/HTTP.
type Server struct {
	svc    *Service
	auth   *Authenticator
	limit  *RateLimiter
	audit  *AuditStore
	hub    *Hub
	logger *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("gridd: service required")
	}
	if cfg.Authenticator == nil {
		return nil, fmt.Errorf("gridd: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:    cfg.Service,
		auth:   cfg.Authenticator,
		limit:  cfg.RateLimiter,
		audit:  cfg.Audit,
		hub:    cfg.Hub,
		logger: logger,
	}, nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observeRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/events/ws", s.hub.ServeWS)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if s.limit != nil {
			v1.Use(s.limit.Middleware)
		}

		v1.Get("/positions/{id}", s.handlePosition)
		v1.Get("/accounts/{addr}", s.handleAccount)
		v1.Get("/levels/{level}", s.handleLevel)
		v1.Get("/pool", s.handlePool)
		v1.Get("/params", s.handleParams)
		v1.Get("/balances/{addr}", s.handleBalances)
		v1.Get("/accounts/{addr}/collectibles", s.handleCollectibles)
		v1.Get("/audit", s.handleAuditList)

		v1.Group(func(user chi.Router) {
			user.Use(s.auth.Middleware(""))
			user.Post("/purchase", s.handlePurchase)
			user.Post("/positions/{id}/spin", s.handleSpin)
			user.Post("/positions/{id}/withdraw", s.handleWithdraw)
			user.Post("/positions/{id}/reactivate", s.handleReactivate)
			user.Post("/airdrop/claim", s.handleAirdrop)
			user.Post("/pool/deposit", s.handleDeposit)
			user.Post("/approve", s.handleApprove)
			user.Post("/collectibles/{id}/transfer", s.handleCollectibleTransfer)
		})

		v1.Group(func(op chi.Router) {
			op.Use(s.auth.Middleware(grid.RoleOperator))
			op.Post("/positions/{id}/accrue", s.handleAccrue)
			op.Post("/dividends/distribute", s.handleDistribute)
		})

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(s.auth.Middleware(grid.RoleAdmin))
			admin.Put("/params", s.handleUpdateParams)
			admin.Post("/pause", s.handlePause(true))
			admin.Post("/resume", s.handlePause(false))
			admin.Post("/emergency-withdraw", s.handleEmergencyWithdraw)
			admin.Post("/roots", s.handleRegisterRoot)
			admin.Post("/collectibles", s.handleMintCollectible)
			admin.Get("/audit/verify", s.handleAuditVerify)
		})
	})

	return otelhttp.NewHandler(r, "gridd")
}

func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		observability.ModuleMetrics().Observe("grid", r.Method+" "+route, status, time.Since(start))
	})
}

// --- request bodies ---

type purchaseRequest struct {
	Rank    string `json:"rank"`
	Sponsor string `json:"sponsor,omitempty"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type approveRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type accrueRequest struct {
	Amount string `json:"amount"`
	Source string `json:"source"`
}

type transferRequest struct {
	To string `json:"to"`
}

type emergencyRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type mintRequest struct {
	Owner string `json:"owner"`
	Tier  string `json:"tier"`
}

// --- user operations ---

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rank, err := grid.ParseRank(req.Rank)
	if err != nil {
		s.fail(w, err)
		return
	}
	var sponsor [20]byte
	if strings.TrimSpace(req.Sponsor) != "" {
		if sponsor, err = parseAddress(req.Sponsor); err != nil {
			s.fail(w, err)
			return
		}
	}
	id, err := s.svc.Purchase(r.Context(), caller.Address, rank, sponsor)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"positionId": id})
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Spin(r.Context(), id, caller.Address)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positionId": res.PositionID,
		"tier":       res.Tier,
		"multiplier": res.Multiplier,
		"amount":     amountString(res.Amount),
		"frozen":     res.Frozen,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Withdraw(r.Context(), id, caller.Address)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positionId": res.PositionID,
		"gross":      amountString(res.Gross),
		"fee":        amountString(res.Fee),
		"net":        amountString(res.Net),
	})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Reactivate(r.Context(), id, caller.Address); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positionId": id, "active": true})
}

func (s *Server) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	amount, err := s.svc.ClaimAirdrop(r.Context(), caller.Address)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": amountString(amount)})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Deposit(r.Context(), caller.Address, amount); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposited": amount.String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	asset, err := s.parseAsset(req.Asset)
	if err != nil {
		s.fail(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.Approve(r.Context(), asset, caller.Address, amount); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset.String(), "allowance": amount.String()})
}

func (s *Server) handleCollectibleTransfer(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.TransferCollectible(r.Context(), id, caller.Address, to); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "owner": formatAddress(to)})
}

// --- operator operations ---

func (s *Server) handleAccrue(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	var req accrueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	source := grid.SourceOperator
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case "", "operator":
	case "periodic":
		source = grid.SourcePeriodic
	default:
		s.fail(w, fmt.Errorf("%w: unknown income source %q", grid.ErrInvalidInput, req.Source))
		return
	}
	frozen, err := s.svc.Accrue(r.Context(), caller.Capability, id, amount, source)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positionId": id, "frozen": frozen})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	dist, err := s.svc.Distribute(r.Context(), caller.Capability)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, distributionView(dist))
}

// --- admin operations ---

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req config.Grid
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Prices) == 0 {
		s.fail(w, fmt.Errorf("%w: prices required", grid.ErrInvalidParams))
		return
	}
	params, err := req.Params(s.svc.Assets().Decimals)
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %w", grid.ErrInvalidParams, err))
		return
	}
	if err := s.svc.UpdateParams(r.Context(), caller.Capability, params); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, config.GridFromParams(s.svc.Params()))
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := mustPrincipal(r)
		if err := s.svc.SetPaused(caller.Capability, paused); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paused": s.svc.Paused()})
	}
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req emergencyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	asset, err := s.parseAsset(req.Asset)
	if err != nil {
		s.fail(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.fail(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.EmergencyWithdraw(r.Context(), caller.Capability, asset, to, amount); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset.String(), "to": formatAddress(to), "amount": amount.String()})
}

func (s *Server) handleRegisterRoot(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.RegisterRoot(r.Context(), caller.Capability, addr); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"root": formatAddress(addr)})
}

func (s *Server) handleMintCollectible(w http.ResponseWriter, r *http.Request) {
	caller := mustPrincipal(r)
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	tier, err := parseHolderTier(req.Tier)
	if err != nil {
		s.fail(w, err)
		return
	}
	tok, err := s.svc.MintCollectible(r.Context(), caller.Capability, owner, tier)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, collectibleView(tok))
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit archive disabled")
		return
	}
	checked, err := s.audit.Verify(r.Context())
	if err != nil {
		s.logger.Error("audit verification failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, map[string]any{"valid": false, "checked": checked, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "checked": checked})
}

// --- queries ---

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.positionID(w, r)
	if !ok {
		return
	}
	pos, err := s.svc.Position(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionView(pos))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, err)
		return
	}
	acc, positions, err := s.svc.Account(addr)
	if err != nil {
		s.fail(w, err)
		return
	}
	views := make([]map[string]any, 0, len(positions))
	for _, pos := range positions {
		views = append(views, positionView(pos))
	}
	referrals := make([]string, 0, len(acc.Referrals))
	for _, ref := range acc.Referrals {
		referrals = append(referrals, formatAddress(ref))
	}
	out := map[string]any{
		"address":     formatAddress(acc.Address),
		"level":       acc.Level.String(),
		"registered":  acc.Registered,
		"referrals":   referrals,
		"invested":    amountString(acc.Invested),
		"earned":      amountString(acc.Earned),
		"lastAirdrop": acc.LastAirdrop,
		"positions":   views,
	}
	if acc.HasSponsor {
		out["sponsor"] = formatAddress(acc.Sponsor)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	level, err := grid.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		s.fail(w, err)
		return
	}
	members, err := s.svc.LevelMembers(level)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, formatAddress(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"level": level.String(), "members": out})
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	pool, err := s.svc.Pool()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":          amountString(pool.Balance),
		"carried":          amountString(pool.Carried),
		"totalCredited":    amountString(pool.TotalCredited),
		"totalDistributed": amountString(pool.TotalDistributed),
		"distributions":    pool.Distributions,
		"lastDistribution": pool.LastDistribution,
	})
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"paused": s.svc.Paused(),
		"params": config.GridFromParams(s.svc.Params()),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, err)
		return
	}
	assets := s.svc.Assets()
	out := make(map[string]string, 2)
	for _, entry := range []struct {
		asset  grid.Asset
		symbol string
	}{
		{grid.AssetPurchase, assets.PurchaseSymbol},
		{grid.AssetReward, assets.RewardSymbol},
	} {
		bal, err := s.svc.Balance(entry.asset, addr)
		if err != nil {
			s.fail(w, err)
			return
		}
		out[strings.ToUpper(entry.symbol)] = amountString(bal)
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": formatAddress(addr), "balances": out})
}

func (s *Server) handleCollectibles(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, err)
		return
	}
	tokens, err := s.svc.Collectibles(addr)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, collectibleView(tok))
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": formatAddress(addr), "tokens": out})
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit archive disabled")
		return
	}
	q := r.URL.Query()
	var after uint64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
		after = v
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	records, err := s.audit.List(r.Context(), after, limit, q.Get("type"))
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decoded()
		if err != nil {
			s.fail(w, err)
			return
		}
		out = append(out, map[string]any{
			"sequence":   rec.Sequence,
			"type":       rec.Type,
			"attributes": attrs,
			"hash":       rec.Hash,
			"prevHash":   rec.PrevHash,
			"createdAt":  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// --- helpers ---

func (s *Server) positionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) parseAsset(raw string) (grid.Asset, error) {
	assets := s.svc.Assets()
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "purchase", strings.ToLower(assets.PurchaseSymbol):
		return grid.AssetPurchase, nil
	case "reward", strings.ToLower(assets.RewardSymbol):
		return grid.AssetReward, nil
	default:
		return 0, fmt.Errorf("%w: unknown asset %q", grid.ErrInvalidInput, raw)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked
	case errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrInsufficientAllowance),
		errors.Is(err, grid.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, grid.ErrUnauthorized),
		errors.Is(err, grid.ErrNotOwner),
		errors.Is(err, collectible.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, grid.ErrPositionNotFound),
		errors.Is(err, collectible.ErrTokenNotFound),
		errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrPositionInactive),
		errors.Is(err, grid.ErrPositionAlreadyActive),
		errors.Is(err, grid.ErrNotEligible),
		errors.Is(err, grid.ErrCooldownActive),
		errors.Is(err, grid.ErrNothingToWithdraw),
		errors.Is(err, grid.ErrEmptyPool),
		errors.Is(err, grid.ErrRegistryMismatch),
		errors.Is(err, nativecommon.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, grid.ErrInvalidInput),
		errors.Is(err, grid.ErrInvalidParams),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidAddress),
		errors.Is(err, collectible.ErrInvalidTier),
		errors.Is(err, collectible.ErrInvalidOwner),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func mustPrincipal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseAddress(raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive integer", grid.ErrInvalidInput)
	}
	return v, nil
}

func parseHolderTier(raw string) (grid.HolderTier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "large":
		return grid.HolderLarge, nil
	case "small":
		return grid.HolderSmall, nil
	default:
		return grid.HolderNone, fmt.Errorf("%w: unknown tier %q", grid.ErrInvalidInput, raw)
	}
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.GridPrefix, addr[:]).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func positionView(pos *grid.Position) map[string]any {
	return map[string]any{
		"id":           pos.ID,
		"owner":        formatAddress(pos.Owner),
		"rank":         pos.Rank.String(),
		"price":        amountString(pos.Price),
		"staticIncome": amountString(pos.StaticIncome),
		"wheelIncome":  amountString(pos.WheelIncome),
		"wheelPaid":    amountString(pos.WheelPaid),
		"totalIncome":  pos.TotalIncome().String(),
		"purchasedAt":  pos.PurchasedAt,
		"lastDraw":     pos.LastDraw,
		"draws":        pos.Draws,
		"active":       pos.Active,
	}
}

func collectibleView(tok *collectible.Token) map[string]any {
	return map[string]any{
		"id":       tok.ID,
		"owner":    formatAddress(tok.Owner),
		"tier":     tok.Tier.String(),
		"mintedAt": tok.MintedAt,
	}
}

func distributionView(d *grid.Distribution) map[string]any {
	cohorts := make([]map[string]any, 0, len(d.Cohorts))
	for _, c := range d.Cohorts {
		cohorts = append(cohorts, map[string]any{
			"cohort":    c.Cohort,
			"share":     amountString(c.Share),
			"members":   c.Members,
			"perMember": amountString(c.PerMember),
			"paid":      amountString(c.Paid),
			"carried":   c.Carried,
		})
	}
	return map[string]any{
		"drained":    amountString(d.Drained),
		"paid":       amountString(d.Paid),
		"carried":    amountString(d.Carried),
		"dust":       d.Dust().String(),
		"recipients": d.Recipients,
		"cohorts":    cohorts,
	}
}
