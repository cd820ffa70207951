// Package handler はquoteフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/transport/http/dto"
	"stock_quote/internal/feature/quote/usecase"
	"stock_quote/internal/platform/middleware"
)

// QuoteResolver はクオート解決のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type QuoteResolver interface {
	Resolve(ctx context.Context, symbol string) (entity.Quote, error)
}

// QuoteHandler はクオート取得のHTTPリクエストを処理します。
type QuoteHandler struct {
	resolver QuoteResolver
	layout   string
}

// NewQuoteHandler は指定されたリゾルバーでQuoteHandlerを生成します。
func NewQuoteHandler(resolver QuoteResolver) *QuoteHandler {
	return &QuoteHandler{resolver: resolver, layout: usecase.DisplayLayout}
}

// GetQuote は銘柄シンボルを受け取り、正規化されたクオートをJSONで返します。
//
// エンドポイント例:
// GET /stock/TCS
//
// エラー:
//   - データなし・不正なシンボル: 400
//   - 上流のレート制限: 429（判明していれば Retry-After 付き）
//   - その他: 500
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	q, err := h.resolver.Resolve(c.Request.Context(), symbol)
	if err != nil {
		h.writeError(c, symbol, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q, h.layout))
}

func (h *QuoteHandler) writeError(c *gin.Context, symbol string, err error) {
	reqID := middleware.GetRequestID(c)

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		if d, ok := domain.RetryAfter(err); ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
		slog.Warn("quote rate limited", "symbol", symbol, "request_id", reqID)
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: domain.ErrRateLimited.Error()})
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrInvalidSymbol):
		slog.Info("quote unavailable", "symbol", symbol, "request_id", reqID, "error", err)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("quote resolution failed", "symbol", symbol, "request_id", reqID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
