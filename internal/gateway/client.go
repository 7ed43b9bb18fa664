// Package gateway implements the stateless adapter that sends NEC, FTD,
// FTC, Reversal and TSQ requests to the upstream clearing gateway and
// parses its action/status codes. It never persists
// anything; it is a request/response shim with a fixed wire-field set.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"braces.dev/errtrace"
	"github.com/shopspring/decimal"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/errorutil"
)

// inconclusiveActionCodes is the set of action codes that do not
// authoritatively indicate success or failure and therefore mandate TSQ
// reconciliation. An empty or absent action code counts
// as inconclusive too; [Response.Inconclusive] handles that.
var inconclusiveActionCodes = map[string]bool{
	"909": true,
	"912": true,
	"990": true,
}

// Request is the outbound wire field set shared by every leg.
// FunctionCode and the direction-specific account/bank fields are filled
// in by the per-leg constructors below rather than by the caller, so a
// caller cannot accidentally swap FTC/Reversal direction by hand.
type Request struct {
	DateTime        string `json:"dateTime"`
	SessionID       string `json:"sessionId"`
	TrackingNumber  string `json:"trackingNumber"`
	FunctionCode    string `json:"functionCode"`
	ChannelCode     string `json:"channelCode"`
	OriginBank      string `json:"originBank"`
	DestBank        string `json:"destBank"`
	AccountToDebit  string `json:"accountToDebit"`
	AccountToCredit string `json:"accountToCredit"`
	NameToDebit     string `json:"nameToDebit"`
	NameToCredit    string `json:"nameToCredit"`
	Amount          string `json:"amount"`
	Narration       string `json:"narration"`
	CallbackURL     string `json:"callbackUrl"`
}

// Response is the parsed result of any leg call.
type Response struct {
	ActionCode  string
	StatusCode  string
	RawResponse []byte
	DurationMS  int64
}

// Inconclusive reports whether r mandates TSQ reconciliation rather than
// an immediate success/failure decision.
func (r *Response) Inconclusive() bool {
	if r.ActionCode == "" {
		return true
	}
	return inconclusiveActionCodes[r.ActionCode]
}

// Success reports whether r is an immediate, unambiguous success.
func (r *Response) Success() bool {
	return r.ActionCode == "000"
}

// Leg identifies which leg of the protocol a call belongs to, used only
// to pick the right function code and direction rule.
type Leg int

const (
	LegNEC Leg = iota
	LegFTD
	LegFTC
	LegReversal
	LegTSQ
)

// TransferParties carries the account/bank/name fields a leg call needs.
// SrcBankCode/SrcAccountNumber/SrcAccountName/Dest* are always the
// transaction's original (not swapped) values; direction swapping for
// FTC/Reversal happens inside the per-leg builders, not by the caller.
type TransferParties struct {
	SrcBankCode     string
	SrcAccountNum   string
	SrcAccountName  string
	DestBankCode    string
	DestAccountNum  string
	DestAccountName string
	Amount          decimal.Decimal
	Narration       string
}

// Client is the stateless Gateway adapter. It holds no transaction
// state; every call is self-contained.
type Client struct {
	cfg  config.Gateway
	http *http.Client
}

// New builds a Client using cfg for endpoints, function/channel codes,
// and the per-request timeout.
func New(cfg config.Gateway) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// NameEnquiry issues a synchronous NEC lookup.
func (c *Client) NameEnquiry(ctx context.Context, sessionID, trackingNumber string, p TransferParties) (*Response, error) {
	req := &Request{
		DateTime:        FormatTimestamp(time.Now()),
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		FunctionCode:    c.cfg.NECFunctionCode,
		ChannelCode:     c.cfg.ChannelCode,
		OriginBank:      p.SrcBankCode,
		DestBank:        p.DestBankCode,
		AccountToDebit:  p.SrcAccountNum,
		AccountToCredit: p.DestAccountNum,
		NameToDebit:     p.SrcAccountName,
		Amount:          FormatAmount(decimal.Zero),
		CallbackURL:     c.cfg.AdvertisedCallbackURL,
	}
	return c.send(ctx, c.cfg.NECURL, req)
}

// FTD issues the debit leg: originBank=src, destBank=dest,
// accountToDebit=src, accountToCredit=dest.
func (c *Client) FTD(ctx context.Context, sessionID, trackingNumber string, p TransferParties) (*Response, error) {
	req := &Request{
		DateTime:        FormatTimestamp(time.Now()),
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		FunctionCode:    c.cfg.FTDFunctionCode,
		ChannelCode:     c.cfg.ChannelCode,
		OriginBank:      p.SrcBankCode,
		DestBank:        p.DestBankCode,
		AccountToDebit:  p.SrcAccountNum,
		AccountToCredit: p.DestAccountNum,
		NameToDebit:     p.SrcAccountName,
		NameToCredit:    p.DestAccountName,
		Amount:          FormatAmount(p.Amount),
		Narration:       p.Narration,
		CallbackURL:     c.cfg.AdvertisedCallbackURL,
	}
	return c.send(ctx, c.cfg.FTDURL, req)
}

// FTC issues the credit leg with swapped direction: originBank=dest,
// destBank=src, accountToDebit=src, accountToCredit=dest. A fresh
// sessionID/trackingNumber is expected from the caller — the original
// FTD pair is never reused for FTC.
func (c *Client) FTC(ctx context.Context, sessionID, trackingNumber string, p TransferParties) (*Response, error) {
	req := &Request{
		DateTime:        FormatTimestamp(time.Now()),
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		FunctionCode:    c.cfg.FTCFunctionCode,
		ChannelCode:     c.cfg.ChannelCode,
		OriginBank:      p.DestBankCode,
		DestBank:        p.SrcBankCode,
		AccountToDebit:  p.SrcAccountNum,
		AccountToCredit: p.DestAccountNum,
		NameToDebit:     p.SrcAccountName,
		NameToCredit:    p.DestAccountName,
		Amount:          FormatAmount(p.Amount),
		Narration:       p.Narration,
		CallbackURL:     c.cfg.AdvertisedCallbackURL,
	}
	return c.send(ctx, c.cfg.FTCURL, req)
}

// Reversal issues a fully mirrored FTD — every src/dest account, bank,
// and name swapped, function code equal to the FTD function code,
// narration prefixed "REVERSAL: ", and a fresh
// sessionID/trackingNumber.
func (c *Client) Reversal(ctx context.Context, sessionID, trackingNumber string, p TransferParties) (*Response, error) {
	req := &Request{
		DateTime:        FormatTimestamp(time.Now()),
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		FunctionCode:    c.cfg.FTDFunctionCode,
		ChannelCode:     c.cfg.ChannelCode,
		OriginBank:      p.DestBankCode,
		DestBank:        p.SrcBankCode,
		AccountToDebit:  p.DestAccountNum,
		AccountToCredit: p.SrcAccountNum,
		NameToDebit:     p.DestAccountName,
		NameToCredit:    p.SrcAccountName,
		Amount:          FormatAmount(p.Amount),
		Narration:       "REVERSAL: " + p.Narration,
		CallbackURL:     c.cfg.AdvertisedCallbackURL,
	}
	return c.send(ctx, c.cfg.FTDURL, req)
}

// TSQ queries the status of the leg identified by sessionID/trackingNumber
// — the original pair of the leg being queried, not a fresh one.
func (c *Client) TSQ(ctx context.Context, sessionID, trackingNumber string, p TransferParties) (*Response, error) {
	req := &Request{
		DateTime:        FormatTimestamp(time.Now()),
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		FunctionCode:    c.cfg.TSQFunctionCode,
		ChannelCode:     c.cfg.ChannelCode,
		OriginBank:      p.SrcBankCode,
		DestBank:        p.DestBankCode,
		AccountToDebit:  p.SrcAccountNum,
		AccountToCredit: p.DestAccountNum,
		Amount:          FormatAmount(p.Amount),
		CallbackURL:     c.cfg.AdvertisedCallbackURL,
	}
	return c.send(ctx, c.cfg.TSQURL, req)
}

// wireResponse is the subset of the Gateway's response body this core
// depends on; other fields are ignored on read.
type wireResponse struct {
	ActionCode string `json:"actionCode"`
	StatusCode string `json:"statusCode"`
}

// send POSTs req to url and parses the response. Any HTTP status is
// treated as a Gateway answer — only a transport-level failure (no
// response, or a body that cannot be read) is an
// [apperr.ErrGatewayTransport]. An empty or non-JSON body yields a
// Response with an empty ActionCode, which counts as inconclusive.
func (c *Client) send(ctx context.Context, url string, req *Request) (*Response, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errtrace.Wrap(apperr.Validation(err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errtrace.Wrap(apperr.GatewayTransport(err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errorutil.IsTimeoutErr(err) {
			return nil, errtrace.Wrap(apperr.GatewayTransport(fmt.Errorf("%s: timed out: %w", url, err)))
		}
		return nil, errtrace.Wrap(apperr.GatewayTransport(fmt.Errorf("%s: %w", url, err)))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errtrace.Wrap(apperr.GatewayTransport(fmt.Errorf("reading response: %w", err)))
	}

	var wr wireResponse
	if len(raw) > 0 {
		// Best-effort parse; an unparseable body, on any status, means
		// there is nothing to correlate against — surface it as
		// inconclusive rather than transport, so the normal TSQ path
		// resolves it.
		_ = json.Unmarshal(raw, &wr)
	}

	return &Response{
		ActionCode:  wr.ActionCode,
		StatusCode:  wr.StatusCode,
		RawResponse: raw,
		DurationMS:  time.Since(start).Milliseconds(),
	}, nil
}
