package router

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dex-backend/internal/app"
	"dex-backend/internal/config"
	"dex-backend/internal/dto"
	"dex-backend/internal/middleware"
	"dex-backend/internal/models"
	"dex-backend/internal/signing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wtSecret = "watch-tower-secret"
	base     = "0x1111111111111111111111111111111111111111"
	quote    = "0x2222222222222222222222222222222222222222"
	expiry   = uint64(2114380800)
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Auth.JWTSecret = "session-secret"
	cfg.WatchTower.Secret = wtSecret

	container, err := app.NewServiceContainer(cfg, nil, logger)
	require.NoError(t, err)
	t.Cleanup(container.Cleanup)
	return &testServer{t: t, engine: SetupRouter(container)}
}

func (s *testServer) do(method, path string, body []byte, header http.Header) (int, map[string]interface{}) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (s *testServer) watchTower(method, path string, body map[string]interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	raw, err := middleware.SignBody(wtSecret, body, time.Now())
	require.NoError(s.t, err)
	return s.do(method, path, raw, nil)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func login(t *testing.T, s *testServer) (http.Header, *dto.MakerRequest) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)

	ts := time.Now().Unix()
	sig, err := signing.Sign(signing.MessageHash(signing.AccountPreimage(owner, uint64(ts))), key)
	require.NoError(t, err)
	code, resp := s.do(http.MethodPost, "/account", mustJSON(t, dto.AccountRequest{
		Address: owner.Hex(), Signature: hexutil.Encode(sig), Timestamp: &ts,
	}), nil)
	require.Equal(t, http.StatusOK, code, resp)

	amount, price := big.NewInt(10), big.NewInt(2)
	fields := &signing.OrderFields{
		Owner:      owner,
		Amount:     amount,
		Price:      price,
		BaseToken:  common.HexToAddress(base),
		QuoteToken: common.HexToAddress(quote),
		Expiry:     expiry,
		IsBuyer:    true,
	}
	hash, orderSig, err := signing.SignOrder(fields, key)
	require.NoError(t, err)
	chainID, isBuyer, exp := uint64(1), true, expiry

	header := http.Header{}
	header.Set("Authorization", "Bearer "+resp["token"].(string))
	return header, &dto.MakerRequest{
		Address:    owner.Hex(),
		ChainID:    &chainID,
		BaseToken:  base,
		QuoteToken: quote,
		Amount:     amount.String(),
		Price:      price.String(),
		IsBuyer:    &isBuyer,
		Expiry:     &exp,
		OrderHash:  hash.Hex(),
		Signature:  hexutil.Encode(orderSig),
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body["message"])

	code, body = s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["database"])
}

func TestSessionRequired(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/order", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authentication credentials were not provided.", body["detail"])

	header := http.Header{}
	header.Set("Authorization", "Bearer not-a-token")
	code, body = s.do(http.MethodGet, "/bot", nil, header)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired token.", body["detail"])
}

func TestErrorEnvelopes(t *testing.T) {
	s := newTestServer(t)
	header, _ := login(t, s)

	code, body := s.do(http.MethodPost, "/order", []byte(`{"amount": 10}`), header)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"amount": []interface{}{"WRONG_DECIMAL"}}, body)

	code, body = s.do(http.MethodPost, "/order", []byte(`{"is_buyer": "yes"}`), header)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"is_buyer": []interface{}{"WRONG_TYPE"}}, body)

	code, body = s.do(http.MethodPost, "/order", []byte(`{`), header)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"error": []interface{}{"MALFORMED_BODY"}}, body)

	code, body = s.do(http.MethodGet, "/orders?base="+base+"&quote="+quote, nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"chain_id": []interface{}{"MISSING_FIELD"}}, body)

	code, body = s.do(http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found.", body["detail"])
}

func TestWatchTowerAuth(t *testing.T) {
	s := newTestServer(t)
	unknown := map[string]interface{}{"order_hash": "0x" + common.Bytes2Hex(make([]byte, 32))}

	code, body := s.do(http.MethodDelete, "/wt-orders", mustJSON(t, unknown), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "WATCH_TOWER_AUTH_FAIL", body["detail"])

	forged, err := middleware.SignBody("other-secret", unknown, time.Now())
	require.NoError(t, err)
	code, _ = s.do(http.MethodDelete, "/wt-orders", forged, nil)
	assert.Equal(t, http.StatusForbidden, code)

	stale, err := middleware.SignBody(wtSecret, unknown, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	code, _ = s.do(http.MethodDelete, "/wt-orders", stale, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.watchTower(http.MethodDelete, "/wt-orders", unknown)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, map[string]interface{}{"error": []interface{}{"NO_MAKER_FOUND"}}, body)
}

func TestMakerLifecycle(t *testing.T) {
	s := newTestServer(t)
	header, req := login(t, s)

	code, body := s.do(http.MethodPost, "/order", mustJSON(t, req), header)
	require.Equal(t, http.StatusOK, code, body)
	orderHash := body["order_hash"].(string)
	assert.Equal(t, string(models.MakerStatusOpen), body["status"])

	code, _ = s.do(http.MethodPost, "/order", mustJSON(t, req), header)
	assert.Equal(t, http.StatusBadRequest, code, "duplicate maker")

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?chain_id=1&base="+base+"&quote="+quote, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Maker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, orderHash, listed[0].OrderHash)

	code, body = s.watchTower(http.MethodPost, "/wt-orders", map[string]interface{}{
		"taker":    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"block":    42,
		"chain_id": 1,
		"trades": map[string]interface{}{
			orderHash: map[string]interface{}{"taker_amount": "4", "fees": "0", "base_fees": true, "is_buyer": true},
		},
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.watchTower(http.MethodDelete, "/wt-orders", map[string]interface{}{"order_hash": orderHash})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(models.MakerStatusCancelled), body["status"])
	assert.Equal(t, "4", body["filled"])

	code, body = s.watchTower(http.MethodDelete, "/wt-orders", map[string]interface{}{"order_hash": orderHash})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"error": []interface{}{"MAKER_ALREADY_CANCELLED"}}, body)
}
