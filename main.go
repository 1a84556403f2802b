package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/blendizzard/block-server/account"
	"github.com/blendizzard/block-server/ammclient"
	"github.com/blendizzard/block-server/config"
	"github.com/blendizzard/block-server/epoch"
	"github.com/blendizzard/block-server/faction"
	"github.com/blendizzard/block-server/game"
	"github.com/blendizzard/block-server/game/verifier"
	"github.com/blendizzard/block-server/rewards"
	"github.com/blendizzard/block-server/tokenclient"
	"github.com/blendizzard/block-server/vaultclient"
)

// dynamicVault, dynamicAMM, and dynamicToken re-read Config on every call
// instead of pinning a client to the vault/router/ledger URLs seen at
// InitModule time — Config.Vault/AMMRouter/TokenLedger are admin-mutable
// via update_config after init, unlike the teacher's shop/matchmaker
// collaborators, which are wired once from static server config.
type dynamicVault struct{ nk runtime.NakamaModule }

func (d dynamicVault) client(ctx context.Context) (*vaultclient.Client, error) {
	cfg, found, err := config.GetConfig(ctx, d.nk)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return vaultclient.New(d.nk, cfg.Vault), nil
}

func (d dynamicVault) Deposit(ctx context.Context, userID string, amount int64) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.Deposit(ctx, userID, amount)
}

func (d dynamicVault) Withdraw(ctx context.Context, userID string, amount int64) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.Withdraw(ctx, userID, amount)
}

func (d dynamicVault) AdminWithdraw(ctx context.Context, destination string, amount int64) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.AdminWithdraw(ctx, destination, amount)
}

func (d dynamicVault) ClaimEmissions(ctx context.Context, reserveIDs []uint32) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.ClaimEmissions(ctx, reserveIDs)
}

func (d dynamicVault) GetUnderlying(ctx context.Context) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.GetUnderlying(ctx)
}

type dynamicAMM struct{ nk runtime.NakamaModule }

func (d dynamicAMM) client(ctx context.Context) (*ammclient.Client, error) {
	cfg, found, err := config.GetConfig(ctx, d.nk)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return ammclient.New(d.nk, cfg.AMMRouter), nil
}

func (d dynamicAMM) QuoteExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn int64) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.QuoteExactIn(ctx, tokenIn, tokenOut, amountIn)
}

func (d dynamicAMM) SwapExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn, minAmountOut int64) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.SwapExactIn(ctx, tokenIn, tokenOut, amountIn, minAmountOut)
}

type dynamicToken struct{ nk runtime.NakamaModule }

func (d dynamicToken) client(ctx context.Context) (*tokenclient.Client, error) {
	cfg, found, err := config.GetConfig(ctx, d.nk)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return tokenclient.New(d.nk, cfg.TokenLedger), nil
}

func (d dynamicToken) Transfer(ctx context.Context, token, destination string, amount int64) error {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return err
	}
	return c.Transfer(ctx, token, destination, amount)
}

func (d dynamicToken) BalanceOf(ctx context.Context, token, address string) (int64, error) {
	c, err := d.client(ctx)
	if err != nil || c == nil {
		return 0, err
	}
	return c.BalanceOf(ctx, token, address)
}

// standingsAdapter satisfies game.StandingsCredit by delegating to the
// epoch package's function, avoiding an import of epoch from game.
type standingsAdapter struct{}

func (standingsAdapter) CreditStanding(ctx context.Context, nk account.Store, epochNum uint32, fac uint32, delta int64, now time.Time) error {
	return epoch.CreditStanding(ctx, nk, epochNum, fac, delta, now)
}

func registerRpc(initializer runtime.Initializer, logger runtime.Logger, id string, fn runtime.RpcFunction) error {
	if err := initializer.RegisterRpc(id, fn); err != nil {
		logger.Error("Unable to register rpc %s: %v", id, err)
		return err
	}
	return nil
}

func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	config.SetEpochBootstrap(epoch.CreateInitialEpoch)
	game.SetEpochStartReader(epoch.GetEpochStartTimeForReader)

	vault := dynamicVault{nk: nk}
	amm := dynamicAMM{nk: nk}
	token := dynamicToken{nk: nk}

	accountFactory := &account.RpcFactory{Vault: vault}
	epochFactory := &epoch.RpcFactory{Vault: vault, AMM: amm, Token: token}
	rewardsFactory := &rewards.RpcFactory{Token: token}
	gameFactory := &game.RpcFactory{Verifier: verifier.Trusted{}, Standings: standingsAdapter{}}

	rpcs := map[string]runtime.RpcFunction{
		"init":          config.RpcInit,
		"set_admin":     config.RpcSetAdmin,
		"get_admin":     config.RpcGetAdmin,
		"update_config": config.RpcUpdateConfig,
		"pause":         config.RpcPause,
		"unpause":       config.RpcUnpause,
		"is_paused":     config.RpcIsPaused,
		"upgrade":       config.RpcUpgrade,

		"deposit":         accountFactory.RpcDeposit,
		"withdraw":        accountFactory.RpcWithdraw,
		"get_player":      account.RpcGetPlayer,
		"get_epoch_player": account.RpcGetEpochPlayer,

		"select_faction":    faction.RpcSelectFaction,
		"is_faction_locked": faction.RpcIsFactionLocked,

		"add_game":                game.RpcAddGame,
		"remove_game":             game.RpcRemoveGame,
		"is_game":                 game.RpcIsGame,
		"start_game":              gameFactory.RpcStartGame,
		"end_game":                gameFactory.RpcEndGame,
		"reclaim_expired_session": game.RpcReclaimExpiredSession,

		"cycle_epoch":          epochFactory.RpcCycleEpoch,
		"get_epoch":            epoch.RpcGetEpoch,
		"get_faction_standings": epoch.RpcGetFactionStandings,
		"get_reward_pool":      epoch.RpcGetRewardPool,
		"get_winning_faction":  epoch.RpcGetWinningFaction,

		"claim_yield":          rewardsFactory.RpcClaimYield,
		"get_claimable_amount": rewards.RpcGetClaimableAmount,
		"has_claimed_rewards":  rewards.RpcHasClaimedRewards,
		"sweep_dust":           rewardsFactory.RpcSweepDust,
	}

	for id, fn := range rpcs {
		if err := registerRpc(initializer, logger, id, fn); err != nil {
			return err
		}
	}

	logger.Info("Blendizzard module loaded, %d RPCs registered", len(rpcs))
	return nil
}
