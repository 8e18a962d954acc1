package voucher

import (
	"net/http"
	"strconv"
	"time"

	"voucherledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler is the thin HTTP layer over the engine and the admin service.
type Handler struct {
	engine  *Engine
	service *Service
}

func NewHandler(engine *Engine, service *Service) *Handler {
	return &Handler{engine: engine, service: service}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/api/v1/redeem", h.redeem)

	admin := r.Group("/admin")
	{
		admin.POST("/redemption-codes", h.create)
		admin.POST("/redemption-codes/batch", h.batchCreate)
		admin.GET("/redemption-codes", h.list)
		admin.GET("/redemption-codes/:id", h.get)
		admin.PUT("/redemption-codes/:id", h.update)
		admin.DELETE("/redemption-codes/:id", h.remove)
		admin.GET("/redemption-codes/:id/records", h.records)
		admin.GET("/redemption-records", h.allRecords)
	}
}

// --- views -------------------------------------------------------------------

type voucherView struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	MaxUses   int64           `json:"max_uses"`
	UsedCount int64           `json:"used_count"`
	ExpiresAt *time.Time      `json:"expires_at"`
	IsActive  bool            `json:"is_active"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
	CreatedBy string          `json:"created_by"`
}

func toVoucherView(v *Voucher) voucherView {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return voucherView{
		ID:        v.ID,
		Code:      v.PlainCode,
		Name:      v.Name,
		Amount:    v.Amount,
		MaxUses:   v.MaxUses,
		UsedCount: v.UsedCount,
		ExpiresAt: v.ExpiresAt,
		IsActive:  v.IsActive,
		Tags:      tags,
		CreatedAt: v.CreatedAt,
		CreatedBy: v.CreatedBy,
	}
}

type recordView struct {
	ID            string          `json:"id"`
	VoucherID     string          `json:"voucher_id"`
	VoucherName   string          `json:"voucher_name"`
	AccountID     string          `json:"account_id"`
	AccountName   string          `json:"account_name"`
	Amount        decimal.Decimal `json:"amount"`
	RedeemedAt    time.Time       `json:"redeemed_at"`
	Source        string          `json:"source"`
	PreviousLimit decimal.Decimal `json:"previous_limit"`
	NewLimit      decimal.Decimal `json:"new_limit"`
}

func toRecordView(r *RedemptionRecord) recordView {
	return recordView{
		ID:            r.ID,
		VoucherID:     r.VoucherID,
		VoucherName:   r.VoucherName,
		AccountID:     r.AccountID,
		AccountName:   r.AccountName,
		Amount:        r.Amount,
		RedeemedAt:    r.RedeemedAt,
		Source:        r.Source,
		PreviousLimit: r.PreviousLimit,
		NewLimit:      r.NewLimit,
	}
}

func toRecordViews(recs []*RedemptionRecord) []recordView {
	out := make([]recordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordView(r))
	}
	return out
}

// --- redemption --------------------------------------------------------------

type redeemRequest struct {
	Code         string `json:"code" binding:"required"`
	AccountToken string `json:"account_token" binding:"required"`
}

type redeemResponse struct {
	CreditedAmount decimal.Decimal `json:"credited_amount"`
	NewCreditLimit decimal.Decimal `json:"new_credit_limit"`
}

func (h *Handler) redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("INVALID_REQUEST_BODY", errutil.WithErr(err)))
		return
	}

	res, err := h.engine.Redeem(c.Request.Context(), req.Code, req.AccountToken, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, redeemResponse{
		CreditedAmount: res.CreditedAmount,
		NewCreditLimit: res.NewCreditLimit,
	})
}

// --- admin -------------------------------------------------------------------

type createVoucherRequest struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	MaxUses   *int64          `json:"max_uses"`
	ExpiresAt *time.Time      `json:"expires_at"`
	Tags      []string        `json:"tags"`
	CreatedBy string          `json:"created_by"`
}

func (r createVoucherRequest) toInput() CreateVoucherInput {
	return CreateVoucherInput{
		Name:      r.Name,
		Amount:    r.Amount,
		MaxUses:   r.MaxUses,
		ExpiresAt: r.ExpiresAt,
		Tags:      r.Tags,
		CreatedBy: r.CreatedBy,
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("INVALID_REQUEST_BODY", errutil.WithErr(err)))
		return
	}

	v, err := h.service.Create(c.Request.Context(), req.toInput())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toVoucherView(v))
}

type batchCreateRequest struct {
	createVoucherRequest
	Count int `json:"count"`
}

func (h *Handler) batchCreate(c *gin.Context) {
	var req batchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("INVALID_REQUEST_BODY", errutil.WithErr(err)))
		return
	}

	vouchers, err := h.service.BatchCreate(c.Request.Context(), req.toInput(), req.Count)
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]voucherView, 0, len(vouchers))
	for _, v := range vouchers {
		views = append(views, toVoucherView(v))
	}
	c.JSON(http.StatusCreated, views)
}

func (h *Handler) list(c *gin.Context) {
	vouchers, err := h.service.List(c.Request.Context(), c.Query("code"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]voucherView, 0, len(vouchers))
	for _, v := range vouchers {
		views = append(views, toVoucherView(v))
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toVoucherView(v))
}

type updateVoucherRequest struct {
	Name    *string          `json:"name"`
	Amount  *decimal.Decimal `json:"amount"`
	MaxUses *int64           `json:"max_uses"`
	// ExpiresAt accepts an RFC3339 timestamp, or an empty string to clear
	// the expiry.
	ExpiresAt *string   `json:"expires_at"`
	IsActive  *bool     `json:"is_active"`
	Tags      *[]string `json:"tags"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("INVALID_REQUEST_BODY", errutil.WithErr(err)))
		return
	}

	upd := VoucherUpdate{
		Name:     req.Name,
		Amount:   req.Amount,
		MaxUses:  req.MaxUses,
		IsActive: req.IsActive,
	}
	if req.Tags != nil {
		upd.Tags = *req.Tags
	}
	if req.ExpiresAt != nil {
		if *req.ExpiresAt == "" {
			upd.ClearExpiry = true
		} else {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				_ = c.Error(errutil.ValidationFailed("INVALID_EXPIRY", errutil.WithErr(err)))
				return
			}
			upd.ExpiresAt = &t
		}
	}

	v, err := h.service.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toVoucherView(v))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) records(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	recs, err := h.service.Records(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toRecordViews(recs))
}

func (h *Handler) allRecords(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	recs, err := h.service.AllRecords(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toRecordViews(recs))
}

func parseLimit(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
