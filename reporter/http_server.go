// HTTP edge of the orchestrator. Thin by design: handlers decode the
// request, call the router, and translate errors through the closed enum.
// No business rule lives here.

package reporter

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gin-gonic/gin"

	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/router"
	"github.com/caesar4321/confio-go/sponsor"
)

const (
	ROUTE_HEALTH    = "/health"
	ROUTE_PREPARE   = "/v1/operations/prepare"
	ROUTE_SUBMIT    = "/v1/operations/:id/submit"
	ROUTE_OPERATION = "/v1/operations/:id"
	ROUTE_ACCOUNT   = "/v1/accounts/:key"
	ROUTE_BALANCE   = "/v1/accounts/:key/balance"
	ROUTE_SPONSOR   = "/v1/sponsor"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	rt  *router.Router
	sub *sponsor.Submitter
}

func NewHttpReporter(serverIP, serverPort string, rt *router.Router, sub *sponsor.Submitter) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		rt:         rt,
		sub:        sub,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	engine := gin.Default()

	engine.GET(ROUTE_HEALTH, Health)
	engine.POST(ROUTE_PREPARE, h.Prepare)
	engine.POST(ROUTE_SUBMIT, h.Submit)
	engine.GET(ROUTE_OPERATION, h.Operation)
	engine.GET(ROUTE_ACCOUNT, h.Account)
	engine.GET(ROUTE_BALANCE, h.Balance)
	engine.GET(ROUTE_SPONSOR, h.Sponsor)

	return engine
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	engine := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := engine.Run(address); err != nil {
		panic(err)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PrepareRequest is the wire form of a prepare call. Binary fields travel as
// base64, addresses in their standard 58-char encoding.
type PrepareRequest struct {
	AccountKey string `json:"account_key" binding:"required"`
	OpKind     string `json:"op_kind" binding:"required"`

	Receiver   string `json:"receiver,omitempty"`
	Amount     uint64 `json:"amount,omitempty"`
	AssetID    uint64 `json:"asset_id,omitempty"`
	Memo       string `json:"memo,omitempty"`
	TradeID    string `json:"trade_id,omitempty"`
	Seller     string `json:"seller,omitempty"`
	Buyer      string `json:"buyer,omitempty"`
	Arbitrator string `json:"arbitrator,omitempty"`
	ClaimCode  string `json:"claim_code,omitempty"`
	Metadata   string `json:"metadata,omitempty"`
	Intended   string `json:"intended,omitempty"`
}

func (h *HttpReporter) Prepare(c *gin.Context) {
	var req PrepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": err.Error()})
		return
	}

	params, err := decodeParams(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": err.Error()})
		return
	}

	res, err := h.rt.Prepare(c.Request.Context(), req.AccountKey, common.OpKind(req.OpKind), params)
	if err != nil {
		writeError(c, err)
		return
	}

	txns := make([]string, len(res.Transactions))
	for i, blob := range res.Transactions {
		txns[i] = base64.StdEncoding.EncodeToString(blob)
	}
	c.JSON(http.StatusOK, gin.H{
		"op_id":          res.OpID,
		"group_id":       res.GroupID,
		"transactions":   txns,
		"user_positions": res.UserPositions,
		"sponsor_cost":   res.SponsorCost,
		"last_valid":     res.LastValid,
		"expires_at":     res.ExpiresAt,
	})
}

// SubmitRequest carries the client-signed positions, keyed by position index.
type SubmitRequest struct {
	Signed map[string]string `json:"signed" binding:"required"`
}

func (h *HttpReporter) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": err.Error()})
		return
	}

	signed := make(map[int][]byte, len(req.Signed))
	for k, v := range req.Signed {
		idx, err := strconv.Atoi(k)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": "bad position " + k})
			return
		}
		blob, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": "bad blob at " + k})
			return
		}
		signed[idx] = blob
	}

	res, err := h.rt.Submit(c.Request.Context(), c.Param("id"), signed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"op_id":    res.OpID,
		"txid":     res.TxID,
		"group_id": res.GroupID,
		"status":   res.Status,
	})
}

func (h *HttpReporter) Operation(c *gin.Context) {
	rec, err := h.rt.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"op_id":      rec.ID,
		"op_kind":    rec.OpKind,
		"actor":      rec.Actor,
		"amount":     rec.Amount,
		"asset_id":   rec.AssetID,
		"status":     rec.Status,
		"group_id":   rec.GroupID,
		"txids":      rec.TxIDs,
		"error":      rec.Error,
		"created_at": rec.CreatedAt,
		"updated_at": rec.UpdatedAt,
	})
}

func (h *HttpReporter) Account(c *gin.Context) {
	acct, err := h.rt.Account(c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_key": acct.AccountKey,
		"address":     acct.Address.String(),
		"opted_in":    acct.OptInSet,
	})
}

func (h *HttpReporter) Balance(c *gin.Context) {
	assetID, err := strconv.ParseUint(c.Query("asset_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": router.CodeInvalidRequest, "detail": "asset_id required"})
		return
	}
	bal, err := h.rt.Balance(c.Param("key"), assetID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_key": c.Param("key"),
		"asset_id":    assetID,
		"balance":     bal,
	})
}

func (h *HttpReporter) Sponsor(c *gin.Context) {
	ss, err := h.sub.Health()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":     ss.Address.String(),
		"balance":     ss.Balance,
		"reserved":    ss.Reserved,
		"min_reserve": ss.MinReserve,
		"available":   ss.Available(),
		"updated_at":  ss.UpdatedAt,
	})
}

func decodeParams(req *PrepareRequest) (groupbuilder.Params, error) {
	var p groupbuilder.Params
	p.Amount = req.Amount
	p.AssetID = req.AssetID
	p.Memo = req.Memo

	for _, field := range []struct {
		src string
		dst *types.Address
	}{
		{req.Receiver, &p.Receiver},
		{req.Seller, &p.Seller},
		{req.Buyer, &p.Buyer},
		{req.Arbitrator, &p.Arbitrator},
		{req.Intended, &p.Intended},
	} {
		if field.src == "" {
			continue
		}
		addr, err := types.DecodeAddress(field.src)
		if err != nil {
			return p, err
		}
		*field.dst = addr
	}

	if req.TradeID != "" {
		p.TradeID = []byte(req.TradeID)
	}
	for _, field := range []struct {
		src string
		dst *[]byte
	}{
		{req.ClaimCode, &p.ClaimCode},
		{req.Metadata, &p.Metadata},
	} {
		if field.src == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(field.src)
		if err != nil {
			return p, err
		}
		*field.dst = raw
	}
	return p, nil
}

// writeError maps the router's error enum onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	code := router.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case router.CodeInvalidRequest, router.CodeBadSignature:
		status = http.StatusBadRequest
	case router.CodeUnknownOperation:
		status = http.StatusNotFound
	case router.CodePrepareExpired:
		status = http.StatusGone
	case router.CodeNotOptedIn, router.CodeInsufficientFunds, router.CodeRejectedOnChain:
		status = http.StatusConflict
	case router.CodeSponsorUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": code, "detail": err.Error()})
}
