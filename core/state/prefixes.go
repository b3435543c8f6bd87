package state

var (
	tokenListKey       = []byte("token/list")
	tokenMetaPrefix    = []byte("token/meta/")
	tokenBalancePrefix = []byte("token/balance/")
	tokenSupplyPrefix  = []byte("token/supply/")
	allowancePrefix    = []byte("token/allowance/")

	gridPositionPrefix = []byte("grid/position/")
	gridAccountPrefix  = []byte("grid/account/")
	gridLevelPrefix    = []byte("grid/level/")
	gridPoolKey        = []byte("grid/pool")
	gridParamsKey      = []byte("grid/params")
	gridSequenceKey    = []byte("grid/seq")

	collectiblePrefix      = []byte("collectible/token/")
	collectibleTierPrefix  = []byte("collectible/tier/")
	collectibleOwnerPrefix = []byte("collectible/owner/")
	collectibleSequenceKey = []byte("collectible/seq")
)
