//go:build integration

package e2e

// e2e_test.go
// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// These tests:
//   - Full import cycle: login → upload → prices changed → history recorded
//   - Rejected rows end up in the batch error report
//   - Oversized batches run through the worker pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/config"
	"github.com/Narimm/OpenVPMS-sub018/internal/importer"
	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
	"github.com/Narimm/OpenVPMS-sub018/internal/router"
	"github.com/Narimm/OpenVPMS-sub018/internal/worker"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, contentType, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func multipartCSV(t *testing.T, csv string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", "prices.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

const csvHeader = "Product Id,Product Name,Printed Name," +
	"Fixed Price Id,Fixed Price,Fixed Cost,Fixed Price Max Discount," +
	"Fixed Price Start Date,Fixed Price End Date,Default Fixed Price,Fixed Price Groups," +
	"Unit Price Id,Unit Price,Unit Cost,Unit Price Max Discount," +
	"Unit Price Start Date,Unit Price End Date,Unit Price Groups,Tax Rate"

func unitRow(productID uuid.UUID, name, priceID, price, cost, from string) string {
	return fmt.Sprintf("%s,%s,,,,,,,,,,%s,%s,%s,0,%s,,,10", productID, name, priceID, price, cost, from)
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	token  string // admin JWT
	db     *gorm.DB
	cfg    *config.Config
}

func setupTestEnv(t *testing.T, syncLimit int) *testEnv {
	t.Helper()
	ctx := context.Background()

	// Start Postgres container
	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("pricelist_test"),
		tcPostgres.WithUsername("pricelist"),
		tcPostgres.WithPassword("pricelist"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start Redis container
	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		GroupsServiceURL:   "http://localhost:9999", // unused in e2e tests
		WorkerPoolSize:     1,
		SyncImportLimit:    syncLimit,
		MaxUploadBytes:     10 << 20,
		PDFStoragePath:     t.TempDir(),
		UploadStoragePath:  t.TempDir(),
	}

	// Connect DB (runs migrations) + Redis
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	// Seed admin user
	hash, err := bcrypt.GenerateFromPassword([]byte("e2e-password"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`INSERT INTO users (id, username, full_name, email, password_hash, role, active, created_at)
		VALUES (gen_random_uuid(), 'admin', 'Admin E2E', 'admin@e2e.test', ?, 'admin', true, NOW())
		ON CONFLICT DO NOTHING`, string(hash)).Error)

	// Worker pool for the queued import path
	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	productRepo := repository.NewProductRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	batchRepo := repository.NewImportBatchRepository(db)
	logRepo := repository.NewChangeLogRepository(db)
	groupRepo := repository.NewPricingGroupRepository(db)
	pipeline := importer.NewPipeline(batchRepo, productRepo, priceRepo, logRepo, groupRepo, cfg.PDFStoragePath)
	dispatcher := worker.NewDispatcher(rdb)
	worker.StartWorkerPool(workerCtx, rdb, cfg.WorkerPoolSize, worker.Handlers{
		Imports: worker.NewImportWorker(batchRepo, pipeline, dispatcher, rdb, cfg.UploadStoragePath),
	})

	groupsCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	r := router.New(cfg, db, rdb, groupsCB)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	// Login as admin
	loginBuf := bytes.NewBufferString(`{"username": "admin", "password": "e2e-password"}`)
	loginResp := do(t, srv, "POST", "/v1/auth/login", loginBuf, "application/json", "")
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var loginBody struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &loginBody)
	require.NotEmpty(t, loginBody.AccessToken)

	return &testEnv{server: srv, token: loginBody.AccessToken, db: db, cfg: cfg}
}

func (env *testEnv) seedProduct(t *testing.T, name string) *model.Product {
	t.Helper()
	p := &model.Product{
		ID:      uuid.New(),
		Name:    name,
		TaxRate: decimal.NewFromInt(10),
		Active:  true,
	}
	require.NoError(t, env.db.Create(p).Error)
	return p
}

func (env *testEnv) seedUnitPrice(t *testing.T, productID uuid.UUID, price, cost string, from time.Time) *model.ProductPrice {
	t.Helper()
	pp := &model.ProductPrice{
		ID:        uuid.New(),
		ProductID: productID,
		Kind:      model.PriceKindUnit,
		Price:     decimal.RequireFromString(price),
		Cost:      decimal.RequireFromString(cost),
		FromDate:  from,
	}
	require.NoError(t, env.db.Create(pp).Error)
	return pp
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_FullImportCycle(t *testing.T) {
	env := setupTestEnv(t, 100)

	product := env.seedProduct(t, "Amoxicillin 250mg Tablets")
	existing := env.seedUnitPrice(t, product.ID, "10.00", "5.00", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	csv := csvHeader + "\n" + unitRow(product.ID, product.Name, existing.ID.String(), "12.00", "5.00", "1/1/2023") + "\n"
	body, contentType := multipartCSV(t, csv)

	uploadResp := do(t, env.server, "POST", "/v1/imports", body, contentType, env.token)
	require.Equal(t, http.StatusOK, uploadResp.StatusCode)
	var batch struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		ChangedProducts int    `json:"changed_products"`
		ErrorCount      int    `json:"error_count"`
	}
	decodeJSON(t, uploadResp, &batch)
	assert.Equal(t, "completed", batch.Status)
	assert.Equal(t, 1, batch.ChangedProducts)
	assert.Equal(t, 0, batch.ErrorCount)

	// Stored price carries the new value and a recomputed markup.
	prodResp := do(t, env.server, "GET", "/v1/products/"+product.ID.String(), nil, "", env.token)
	require.Equal(t, http.StatusOK, prodResp.StatusCode)
	var prod struct {
		Prices []struct {
			Price  string `json:"price"`
			Markup string `json:"markup"`
		} `json:"prices"`
	}
	decodeJSON(t, prodResp, &prod)
	require.Len(t, prod.Prices, 1)
	assert.Equal(t, "12", prod.Prices[0].Price)
	assert.Equal(t, "118.18", prod.Prices[0].Markup)

	// History records the update against the batch.
	histResp := do(t, env.server, "GET", "/v1/products/"+product.ID.String()+"/history", nil, "", env.token)
	require.Equal(t, http.StatusOK, histResp.StatusCode)
	var hist struct {
		Data []struct {
			Action  string  `json:"action"`
			BatchID *string `json:"batch_id"`
		} `json:"data"`
	}
	decodeJSON(t, histResp, &hist)
	require.Len(t, hist.Data, 1)
	assert.Equal(t, "update", hist.Data[0].Action)
	require.NotNil(t, hist.Data[0].BatchID)
	assert.Equal(t, batch.ID, *hist.Data[0].BatchID)
}

func TestE2E_RejectedRowsReported(t *testing.T) {
	env := setupTestEnv(t, 100)

	csv := csvHeader + "\n" + unitRow(uuid.New(), "Ghost Product", "-1", "9.00", "3.00", "1/1/2023") + "\n"
	body, contentType := multipartCSV(t, csv)

	uploadResp := do(t, env.server, "POST", "/v1/imports", body, contentType, env.token)
	require.Equal(t, http.StatusOK, uploadResp.StatusCode)
	var batch struct {
		ID         string `json:"id"`
		ErrorCount int    `json:"error_count"`
	}
	decodeJSON(t, uploadResp, &batch)
	assert.Equal(t, 1, batch.ErrorCount)

	getResp := do(t, env.server, "GET", "/v1/imports/"+batch.ID, nil, "", env.token)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var stored struct {
		Errors []struct {
			Line int    `json:"line"`
			Code string `json:"code"`
		} `json:"errors"`
	}
	decodeJSON(t, getResp, &stored)
	require.Len(t, stored.Errors, 1)
	assert.Equal(t, 2, stored.Errors[0].Line)
	assert.Equal(t, "not_found", stored.Errors[0].Code)
}

func TestE2E_LargeBatchRunsThroughWorker(t *testing.T) {
	// syncLimit 0 forces every upload through the queue.
	env := setupTestEnv(t, 0)

	product := env.seedProduct(t, "Amoxicillin 250mg Tablets")
	existing := env.seedUnitPrice(t, product.ID, "10.00", "5.00", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	csv := csvHeader + "\n" + unitRow(product.ID, product.Name, existing.ID.String(), "15.00", "5.00", "1/1/2023") + "\n"
	body, contentType := multipartCSV(t, csv)

	uploadResp := do(t, env.server, "POST", "/v1/imports", body, contentType, env.token)
	require.Equal(t, http.StatusOK, uploadResp.StatusCode)
	var batch struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeJSON(t, uploadResp, &batch)
	assert.Equal(t, "pending", batch.Status)

	// Poll until the worker finishes the batch.
	deadline := time.Now().Add(30 * time.Second)
	status := batch.Status
	for time.Now().Before(deadline) && status != "completed" && status != "failed" {
		time.Sleep(500 * time.Millisecond)
		resp := do(t, env.server, "GET", "/v1/imports/"+batch.ID, nil, "", env.token)
		var current struct {
			Status string `json:"status"`
		}
		decodeJSON(t, resp, &current)
		status = current.Status
	}
	require.Equal(t, "completed", status)

	var price model.ProductPrice
	require.NoError(t, env.db.First(&price, existing.ID).Error)
	assert.True(t, price.Price.Equal(decimal.RequireFromString("15.00")), "price %s", price.Price)
}
