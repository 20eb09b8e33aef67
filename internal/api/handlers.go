package api

import (
	"context"
	"net/http"
	"net/url"

	"koalaswap/internal/koala"
	"koalaswap/internal/model"
)

// serve decodes a request, runs call, and writes the result or the mapped error.
func serve[Req any, Res any](s *Server, decode func(*http.Request) (Req, error), call func(context.Context, Req) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := call(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, res)
	}
}

// jsonBody decodes the POST body into Req.
func jsonBody[Req any](r *http.Request) (Req, error) {
	var req Req
	err := decodeBody(r, &req)
	return req, err
}

func (s *Server) poolInfo(kind model.PoolKind) http.HandlerFunc {
	return serve(s, poolQuery, func(ctx context.Context, req koala.PoolRequest) (model.PoolInfo, error) {
		return s.svc.PoolInfo(ctx, kind, req)
	})
}

func poolQuery(r *http.Request) (koala.PoolRequest, error) {
	q := r.URL.Query()
	return koala.PoolRequest{
		Network:     queryString(q, "network"),
		PoolAddress: queryString(q, "poolAddress"),
		BaseToken:   queryString(q, "baseToken"),
		QuoteToken:  queryString(q, "quoteToken"),
	}, nil
}

func (s *Server) quoteSwap(kind model.PoolKind) http.HandlerFunc {
	return serve(s, swapQuery, func(ctx context.Context, req koala.SwapRequest) (model.SwapQuote, error) {
		return s.svc.QuoteSwap(ctx, kind, req)
	})
}

func swapQuery(r *http.Request) (koala.SwapRequest, error) {
	q := r.URL.Query()
	amount, err := queryDecimal(q, "amount")
	if err != nil {
		return koala.SwapRequest{}, err
	}
	opts, err := txQuery(q)
	if err != nil {
		return koala.SwapRequest{}, err
	}
	return koala.SwapRequest{
		TxOptions:   opts,
		PoolAddress: queryString(q, "poolAddress"),
		BaseToken:   queryString(q, "baseToken"),
		QuoteToken:  queryString(q, "quoteToken"),
		Amount:      amount,
		Side:        queryString(q, "side"),
	}, nil
}

func txQuery(q url.Values) (koala.TxOptions, error) {
	slippage, err := queryDecimal(q, "slippagePct")
	if err != nil {
		return koala.TxOptions{}, err
	}
	return koala.TxOptions{
		Network:       queryString(q, "network"),
		WalletAddress: queryString(q, "walletAddress"),
		SlippagePct:   slippage,
	}, nil
}

func (s *Server) executeSwap(kind model.PoolKind) http.HandlerFunc {
	return serve(s, jsonBody[koala.SwapRequest], func(ctx context.Context, req koala.SwapRequest) (model.SwapResult, error) {
		return s.svc.ExecuteSwap(ctx, kind, req)
	})
}

func (s *Server) quoteLiquidity(w http.ResponseWriter, r *http.Request) {
	serve(s, liquidityQuery, s.svc.QuoteLiquidity)(w, r)
}

func liquidityQuery(r *http.Request) (koala.AddLiquidityRequest, error) {
	q := r.URL.Query()
	opts, err := txQuery(q)
	if err != nil {
		return koala.AddLiquidityRequest{}, err
	}
	base, err := queryDecimal(q, "baseTokenAmount")
	if err != nil {
		return koala.AddLiquidityRequest{}, err
	}
	quote, err := queryDecimal(q, "quoteTokenAmount")
	if err != nil {
		return koala.AddLiquidityRequest{}, err
	}
	return koala.AddLiquidityRequest{
		TxOptions:        opts,
		PoolAddress:      queryString(q, "poolAddress"),
		BaseToken:        queryString(q, "baseToken"),
		QuoteToken:       queryString(q, "quoteToken"),
		BaseTokenAmount:  base,
		QuoteTokenAmount: quote,
	}, nil
}

func (s *Server) addLiquidity(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.AddLiquidityRequest], s.svc.AddLiquidity)(w, r)
}

func (s *Server) removeLiquidity(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.RemoveLiquidityRequest], s.svc.RemoveLiquidity)(w, r)
}

func (s *Server) openPosition(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.OpenPositionRequest], s.svc.OpenPosition)(w, r)
}

func (s *Server) addPositionLiquidity(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.PositionLiquidityRequest], s.svc.AddPositionLiquidity)(w, r)
}

func (s *Server) removePositionLiquidity(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.RemovePositionRequest], s.svc.RemovePositionLiquidity)(w, r)
}

func (s *Server) closePosition(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.PositionRequest], s.svc.ClosePosition)(w, r)
}

func (s *Server) collectFees(w http.ResponseWriter, r *http.Request) {
	serve(s, jsonBody[koala.PositionRequest], s.svc.CollectFees)(w, r)
}

func (s *Server) positionInfo(w http.ResponseWriter, r *http.Request) {
	serve(s, positionQuery, s.svc.PositionInfo)(w, r)
}

func positionQuery(r *http.Request) (koala.PositionRef, error) {
	q := r.URL.Query()
	return koala.PositionRef{
		Network:         queryString(q, "network"),
		PositionAddress: queryString(q, "positionAddress"),
	}, nil
}
