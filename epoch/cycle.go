package epoch

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blendizzard/block-server/blendlog"
	"github.com/blendizzard/block-server/config"
	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/events"
	"github.com/blendizzard/block-server/faction"
	"github.com/blendizzard/block-server/nkport"
	"github.com/heroiclabs/nakama-common/runtime"
)

// ProtocolAccountID is the identity the module presents to the vault,
// AMM, and token-ledger adapters for balances and transfers the
// protocol itself owns (as opposed to any individual player's). There
// is no on-chain "contract address" in a Nakama deployment; this is its
// stand-in.
const ProtocolAccountID = "blendizzard-protocol"

// Vault is the narrow slice of vaultclient.Client cycle_epoch needs.
type Vault interface {
	GetUnderlying(ctx context.Context) (int64, error)
	AdminWithdraw(ctx context.Context, destination string, amount int64) (int64, error)
	ClaimEmissions(ctx context.Context, reserveIDs []uint32) (int64, error)
}

// AMM is the narrow slice of ammclient.Client cycle_epoch needs.
type AMM interface {
	QuoteExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn int64) (int64, error)
	SwapExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn, minAmountOut int64) (int64, error)
}

// Token is the narrow slice of tokenclient.Client cycle_epoch needs.
type Token interface {
	BalanceOf(ctx context.Context, token, address string) (int64, error)
}

// Store is the storage + event-emission slice cycle_epoch needs: it
// both owns EpochInfo's storage lifecycle and emits the EpochCycled
// event once finalization commits.
type Store interface {
	nkport.StorageClient
	nkport.EventClient
}

const basisPointsDenominator = 10_000

// harvest runs the vault's two yield-accruing calls concurrently —
// independent of each other, as spec.md §4.7 step 2 describes — and
// swallows each failure locally rather than failing the whole cycle, so
// that a broken vault collaborator degrades the epoch's reward_pool to
// zero instead of freezing the protocol.
func harvest(ctx context.Context, logger runtime.Logger, vault Vault, reserveIDs []uint32) int64 {
	var adminWithdrawn, claimed int64
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		underlying, err := vault.GetUnderlying(gctx)
		if err != nil {
			blendlog.Warn(gctx, logger, "cycle_epoch: get_underlying failed, skipping admin_withdraw", map[string]interface{}{"error": err.Error()})
			return nil
		}
		if underlying <= 0 {
			return nil
		}
		paid, err := vault.AdminWithdraw(gctx, ProtocolAccountID, underlying)
		if err != nil {
			blendlog.Warn(gctx, logger, "cycle_epoch: admin_withdraw failed, yield from this leg is 0", map[string]interface{}{"error": err.Error()})
			return nil
		}
		adminWithdrawn = paid
		return nil
	})

	g.Go(func() error {
		harvested, err := vault.ClaimEmissions(gctx, reserveIDs)
		if err != nil {
			blendlog.Warn(gctx, logger, "cycle_epoch: claim_emissions failed, yield from this leg is 0", map[string]interface{}{"error": err.Error()})
			return nil
		}
		claimed = harvested
		return nil
	})

	_ = g.Wait() // both legs already swallow their own errors; nothing can fail here
	return adminWithdrawn + claimed
}

// swap converts yieldAmount of yieldToken into payoutToken via the AMM
// router, applying cfg.SlippageToleranceBps to the router's own quote as
// the minimum-out floor. Swap failure (including an unfavorable quote)
// is non-fatal: it is logged, no payout asset arrives, and the epoch's
// measured reward_pool (post-balance minus pre-balance) comes out as 0.
func swap(ctx context.Context, logger runtime.Logger, amm AMM, yieldToken, payoutToken string, yieldAmount int64, slippageBps int64) {
	if yieldAmount <= 0 {
		return
	}
	quote, err := amm.QuoteExactIn(ctx, yieldToken, payoutToken, yieldAmount)
	if err != nil {
		blendlog.Warn(ctx, logger, "cycle_epoch: amm quote failed, skipping swap", map[string]interface{}{"error": err.Error()})
		return
	}
	minOut := quote - (quote*slippageBps)/basisPointsDenominator
	if minOut < 0 {
		minOut = 0
	}
	if _, err := amm.SwapExactIn(ctx, yieldToken, payoutToken, yieldAmount, minOut); err != nil {
		blendlog.Warn(ctx, logger, "cycle_epoch: amm swap failed, reward pool for this epoch is 0", map[string]interface{}{"error": err.Error()})
	}
}

// resolveWinningFaction implements §4.7 step 5: argmax over
// faction_standings with a lowest-id tie-break, or no winner at all if
// every faction's standing is zero (Scenario F / no games played).
func resolveWinningFaction(standings map[uint32]int64) (f uint32, hasWinner bool) {
	var best int64
	for i := uint32(0); i < faction.NumFactions; i++ {
		v := standings[i]
		if v > 0 && (!hasWinner || v > best) {
			best, f, hasWinner = v, i, true
		}
	}
	return f, hasWinner
}

// CycleEpoch implements §4.7 cycle_epoch(): harvest, swap, measure,
// finalize, advance. Callable by anyone once now >= end_time.
func CycleEpoch(ctx context.Context, logger runtime.Logger, nk Store, vault Vault, amm AMM, token Token, cfg config.Config, currentEpochNum uint32, now time.Time) (finalized EpochInfo, nextEpoch uint32, err error) {
	e, found, version, err := loadEpoch(ctx, nk, currentEpochNum)
	if err != nil {
		return EpochInfo{}, 0, err
	}
	if !found {
		return EpochInfo{}, 0, blenderrors.ErrInternal
	}
	if e.IsFinalized {
		return EpochInfo{}, 0, blenderrors.ErrEpochAlreadyFinalized
	}
	if now.Unix() < e.EndTime {
		return EpochInfo{}, 0, blenderrors.ErrEpochNotReady
	}

	preBalance, err := token.BalanceOf(ctx, cfg.PayoutToken, ProtocolAccountID)
	if err != nil {
		return EpochInfo{}, 0, blenderrors.ErrTokenTransferError
	}

	yieldAmount := harvest(ctx, logger, vault, cfg.ReserveTokenIDs)
	swap(ctx, logger, amm, cfg.YieldToken, cfg.PayoutToken, yieldAmount, cfg.SlippageToleranceBps)

	postBalance, err := token.BalanceOf(ctx, cfg.PayoutToken, ProtocolAccountID)
	if err != nil {
		return EpochInfo{}, 0, blenderrors.ErrTokenTransferError
	}
	rewardPool := postBalance - preBalance
	if rewardPool < 0 {
		rewardPool = 0
	}

	winningFaction, hasWinner := resolveWinningFaction(e.FactionStandings)
	e.RewardPoolPayoutAsset = rewardPool
	e.HasWinningFaction = hasWinner
	if hasWinner {
		e.WinningFaction = winningFaction
		e.TotalWinningContributions = e.FactionStandings[winningFaction]
	}
	e.IsFinalized = true
	if err := saveEpoch(ctx, nk, e, version, now); err != nil {
		return EpochInfo{}, 0, err
	}

	next := EpochInfo{
		EpochNumber:      currentEpochNum + 1,
		StartTime:        e.EndTime,
		EndTime:          e.EndTime + cfg.EpochDurationSeconds,
		FactionStandings: map[uint32]int64{},
	}
	if err := saveEpoch(ctx, nk, next, "", now); err != nil {
		return EpochInfo{}, 0, err
	}
	if err := config.SetCurrentEpoch(ctx, nk, next.EpochNumber); err != nil {
		return EpochInfo{}, 0, err
	}

	winningFactionLabel := "none"
	if hasWinner {
		winningFactionLabel = strconv.FormatUint(uint64(winningFaction), 10)
	}
	events.Emit(ctx, nk, events.EpochCycled{
		Epoch:          currentEpochNum,
		WinningFaction: winningFactionLabel,
		TotalYield:     yieldAmount,
		TotalPayout:    rewardPool,
	})

	return e, next.EpochNumber, nil
}
