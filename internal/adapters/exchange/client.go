// Package exchange is the signed REST client for the upstream exchange's
// deposit history, grounded on the request/response shape of the teacher's
// components/mdz/internal/rest package (BuildPaginatedURL-style query
// construction, checkResponse-style status handling), adapted from OAuth
// bearer auth to HMAC query signing per this exchange's API.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

const requestTimeout = 30 * time.Second

// Deposit is a single exchange deposit-history record, read verbatim.
type Deposit struct {
	TxID         string `json:"txId"`
	Coin         string `json:"coin"`
	Network      string `json:"network"`
	Amount       string `json:"amount"`
	Status       int    `json:"status"`
	Address      string `json:"address"`
	AddressTag   string `json:"addressTag,omitempty"`
	InsertTime   int64  `json:"insertTime"`
	CompleteTime int64  `json:"completeTime,omitempty"`
	ConfirmTimes int    `json:"confirmTimes"`
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

// Client is a signed REST client for the exchange's deposit-history API.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	logger    mlog.Logger
	http      *http.Client

	timeOffsetMS int64
}

// NewClient returns a Client targeting baseURL, authenticating with
// apiKey/apiSecret.
func NewClient(baseURL, apiKey, apiSecret string, logger mlog.Logger) *Client {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		logger:    logger,
		http:      &http.Client{Timeout: requestTimeout},
	}
}

// SyncTime queries the exchange's server time and stores the offset from
// local time, per §4.3's clock-sync requirement.
func (c *Client) SyncTime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/time", nil)
	if err != nil {
		return err
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: sync time: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var parsed serverTimeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("exchange: decode server time: %w", err)
	}

	localMS := start.UnixMilli()
	c.timeOffsetMS = parsed.ServerTime - localMS

	c.logger.Infof("exchange time offset: %dms", c.timeOffsetMS)

	return nil
}

// adjustedNow returns local time adjusted by the last synced offset.
func (c *Client) adjustedNow() int64 {
	return time.Now().UnixMilli() + c.timeOffsetMS
}

// DepositHistory fetches up to limit deposit records in [startMS, endMS),
// signed per §6.
func (c *Client) DepositHistory(ctx context.Context, startMS, endMS int64, limit int) ([]Deposit, error) {
	params := url.Values{}
	params.Set("startTime", strconv.FormatInt(startMS, 10))
	params.Set("endTime", strconv.FormatInt(endMS, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timestamp", strconv.FormatInt(c.adjustedNow(), 10))

	query := signedQuery(params, c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sapi/v1/capital/deposit/hisrec?"+query, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: deposit history: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var deposits []Deposit
	if err := json.Unmarshal(body, &deposits); err != nil {
		return nil, fmt.Errorf("exchange: decode deposit history: %w", err)
	}

	return deposits, nil
}

// signedQuery builds the deterministic, lexicographically-sorted
// key=value query string and appends its HMAC-SHA256 signature.
func signedQuery(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Get(k))
	}

	queryString := b.String()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(queryString))
	signature := hex.EncodeToString(mac.Sum(nil))

	return queryString + "&signature=" + signature
}

// checkStatus returns a non-nil error if resp's status is not 2xx,
// reading the body for the error detail, without leaking secret material.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("exchange: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
