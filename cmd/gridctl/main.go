package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"gridchain/config"
	"gridchain/crypto"
	"gridchain/native/grid"
	"gridchain/services/gridd"
)

const (
	migrateCommand  = "migrate-keystore"
	keygenCommand   = "keygen"
	addressCommand  = "address"
	tokenCommand    = "token"
	defaultPassEnv  = "GRID_MODULE_PASS"
	defaultConfig   = "./config.toml"
	defaultKeystore = "module.keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case migrateCommand:
		err = runMigrate(os.Args[2:])
	case keygenCommand:
		err = runKeygen(os.Args[2:])
	case addressCommand:
		err = runAddress(os.Args[2:])
	case tokenCommand:
		err = runToken(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet(migrateCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the gridd config file")
	keystorePath := fs.String("keystore", "", "Output path for the generated keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	_ = fs.Parse(args)
	return migrateKeystore(*configPath, *keystorePath, *passEnv, *force)
}

// migrateKeystore moves a plaintext ModuleKey out of the config file into an
// encrypted keystore, leaving every other setting untouched.
func migrateKeystore(configPath, keystorePath, passEnv string, force bool) error {
	raw := map[string]interface{}{}
	if _, err := toml.DecodeFile(configPath, &raw); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	legacy, _ := raw["ModuleKey"].(string)
	if strings.TrimSpace(legacy) == "" {
		return fmt.Errorf("config %s does not contain a ModuleKey field to migrate", configPath)
	}
	if existing, _ := raw["ModuleKeystorePath"].(string); existing != "" {
		return fmt.Errorf("config %s already references a keystore", configPath)
	}

	if keystorePath == "" {
		keystorePath = siblingPath(configPath, defaultKeystore)
	}
	if err := checkOverwrite(keystorePath, force); err != nil {
		return err
	}
	passphrase, err := lookupPassphrase(passEnv)
	if err != nil {
		return err
	}
	key, err := parseLegacyKey(legacy)
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	delete(raw, "ModuleKey")
	raw["ModuleKeystorePath"] = keystorePath
	if passEnv != "" {
		raw["ModuleKeystoreEnv"] = passEnv
	}
	if err := writeTOML(configPath, raw); err != nil {
		return err
	}
	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("verification failed after migration: %w", err)
	}

	fmt.Printf("Wrote keystore to %s and updated %s\n", keystorePath, configPath)
	return nil
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ExitOnError)
	out := fs.String("out", defaultKeystore, "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	_ = fs.Parse(args)

	if err := checkOverwrite(*out, *force); err != nil {
		return err
	}
	passphrase, err := lookupPassphrase(*passEnv)
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, passphrase); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	addr := key.PubKey().Address()
	fmt.Printf("Wrote keystore to %s\n", *out)
	fmt.Printf("Module address: %s\n", crypto.MustNewAddress(crypto.ModulePrefix, addr.Bytes()).String())
	fmt.Printf("Hex:            0x%s\n", hex.EncodeToString(addr.Bytes()))
	return nil
}

func runAddress(args []string) error {
	fs := flag.NewFlagSet(addressCommand, flag.ExitOnError)
	prefix := fs.String("prefix", string(crypto.GridPrefix), "Human-readable prefix for the bech32 form")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gridctl address [-prefix grid] <bech32|0xhex>")
	}
	bech, hexForm, err := convertAddress(fs.Arg(0), crypto.AddressPrefix(*prefix))
	if err != nil {
		return err
	}
	fmt.Println(bech)
	fmt.Println(hexForm)
	return nil
}

func convertAddress(input string, prefix crypto.AddressPrefix) (string, string, error) {
	raw, err := crypto.ParseAddress(input)
	if err != nil {
		return "", "", err
	}
	return crypto.MustNewAddress(prefix, raw[:]).String(), "0x" + hex.EncodeToString(raw[:]), nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ExitOnError)
	configPath := fs.String("config", "", "Read auth settings from this gridd config")
	subject := fs.String("sub", "", "Caller address (bech32 or 0x hex)")
	roles := fs.String("roles", "", "Comma separated roles: operator, admin")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := fs.String("secret-env", "GRID_JWT_SECRET", "Environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "gridd", "Issuer claim")
	audience := fs.String("audience", "grid-api", "Audience claim")
	_ = fs.Parse(args)

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		*secretEnv = cfg.Auth.SecretEnv
		*issuer = cfg.Auth.Issuer
		*audience = cfg.Auth.Audience
	}
	if _, err := crypto.ParseAddress(*subject); err != nil {
		return fmt.Errorf("invalid -sub: %w", err)
	}
	parsed, err := parseRoles(*roles)
	if err != nil {
		return err
	}
	secret := os.Getenv(*secretEnv)
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("environment variable %s is not set", *secretEnv)
	}
	tok, err := gridd.IssueToken(secret, *issuer, *audience, strings.TrimSpace(*subject), parsed, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func parseRoles(raw string) ([]grid.Role, error) {
	var out []grid.Role
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, err := grid.ParseRole(part)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func parseLegacyKey(value string) (*crypto.PrivateKey, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("module key is empty")
	}
	bytes, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid module key encoding: %w", err)
	}
	return crypto.PrivateKeyFromBytes(bytes)
}

func lookupPassphrase(passEnv string) (string, error) {
	if passEnv == "" {
		return "", nil
	}
	val, ok := os.LookupEnv(passEnv)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", passEnv)
	}
	return val, nil
}

func checkOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func siblingPath(configPath, name string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func writeTOML(path string, value interface{}) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(value)
}

func usage() {
	fmt.Println("gridctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s    Convert a plaintext ModuleKey to an encrypted keystore\n", migrateCommand)
	fmt.Printf("  %s              Generate a new module keystore\n", keygenCommand)
	fmt.Printf("  %s             Convert between bech32 and hex addresses\n", addressCommand)
	fmt.Printf("  %s               Issue an API bearer token\n", tokenCommand)
}
