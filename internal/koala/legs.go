package koala

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"koalaswap/internal/model"
)

// funding selects the contract entry point for a two-token deposit or withdrawal.
type funding int

const (
	fundTokens funding = iota
	fundNativeBase
	fundNativeQuote
)

func (f funding) String() string {
	switch f {
	case fundNativeBase:
		return "native+token"
	case fundNativeQuote:
		return "token+native"
	default:
		return "token+token"
	}
}

// leg is one pool token of a request in pool order.
// wrap means the caller named the native currency and it is wrapped before use.
type leg struct {
	token  model.TokenDescriptor
	amount decimal.Decimal
	wrap   bool
}

// wrappedNative returns the network's wrapped native token, or false when none is configured.
func wrappedNative(ctx context.Context, network *Network) (model.TokenDescriptor, bool) {
	wrapped, err := network.Registry.WrappedNative(ctx)
	if err != nil {
		return model.TokenDescriptor{}, false
	}
	return wrapped, true
}

// fundingOf picks the native entry point for an unwrapped wrapped-native leg.
func fundingOf(ctx context.Context, network *Network, legs [2]leg) funding {
	wrapped, ok := wrappedNative(ctx, network)
	if !ok {
		return fundTokens
	}
	switch {
	case legs[0].token.SameAddress(wrapped) && !legs[0].wrap:
		return fundNativeBase
	case legs[1].token.SameAddress(wrapped) && !legs[1].wrap:
		return fundNativeQuote
	default:
		return fundTokens
	}
}

// poolLegs aligns optional request tokens with the pool's token order.
// Tokens given in reverse order swap their amounts. "ETH" stands for the wrapped native leg.
func (s *Service) poolLegs(ctx context.Context, network *Network, pool model.PoolInfo, baseRef, quoteRef string, baseAmount, quoteAmount decimal.Decimal) ([2]leg, error) {
	legs := [2]leg{
		{token: pool.BaseToken, amount: baseAmount},
		{token: pool.QuoteToken, amount: quoteAmount},
	}

	refs := [2]string{strings.TrimSpace(baseRef), strings.TrimSpace(quoteRef)}
	var (
		tokens [2]model.TokenDescriptor
		wraps  [2]bool
	)
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		if model.IsNativeSymbol(ref) {
			wrapped, ok := wrappedNative(ctx, network)
			if !ok {
				return legs, newError(KindUnsupportedToken, "No wrapped native token configured for network %s", network.Name)
			}
			tokens[i], wraps[i] = wrapped, true
			continue
		}
		token, err := network.Registry.ResolveToken(ctx, ref)
		if err != nil {
			return legs, err
		}
		tokens[i] = token
	}

	matches := func(token, poolToken model.TokenDescriptor) bool {
		return token.Address == "" || token.SameAddress(poolToken)
	}
	switch {
	case matches(tokens[0], pool.BaseToken) && matches(tokens[1], pool.QuoteToken):
		legs[0].wrap, legs[1].wrap = wraps[0], wraps[1]
	case matches(tokens[0], pool.QuoteToken) && matches(tokens[1], pool.BaseToken):
		legs[0].amount, legs[1].amount = quoteAmount, baseAmount
		legs[0].wrap, legs[1].wrap = wraps[1], wraps[0]
	default:
		return legs, newError(KindUnsupportedToken, "Tokens %s/%s do not match pool %s (%s/%s)",
			refs[0], refs[1], pool.Address, pool.BaseToken.Symbol, pool.QuoteToken.Symbol)
	}
	return legs, nil
}
