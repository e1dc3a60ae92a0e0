// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"

	"github.com/holomush/accountd/internal/auth"
	authpg "github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/auth/rediscache"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/validate"
)

type apiResponse struct {
	status int
	body   map[string]any
}

type apiClient struct {
	server *httptest.Server
}

func (c *apiClient) do(method, path, token string, payload any) apiResponse {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, body)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	out := apiResponse{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
	}
	return out
}

func alice() map[string]any {
	return map[string]any{
		"userName":       "alice",
		"emailAddress":   "alice@example.com",
		"identityNumber": "3201010101010001",
		"password":       "secret1",
	}
}

func tokenOf(resp apiResponse) string {
	if data, ok := resp.body["data"].(map[string]any); ok {
		return data["token"].(string)
	}
	return resp.body["token"].(string)
}

// newStack wires the API the way accountd serve does, with the given cache.
func newStack(sessions auth.SessionCache) *apiClient {
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "integration-secret", Issuer: "accountd"})
	Expect(err).NotTo(HaveOccurred())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auth.NewService(
		authpg.NewAccountRepository(db.Pool),
		sessions,
		auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1}),
		tokens,
		auth.WithLogger(logger),
	)
	Expect(err).NotTo(HaveOccurred())

	v, err := validate.New()
	Expect(err).NotTo(HaveOccurred())

	h, err := httpapi.New(svc, v, httpapi.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())

	server := httptest.NewServer(h.Routes())
	DeferCleanup(server.Close)
	return &apiClient{server: server}
}

func resetTables() {
	_, err := db.Pool.Exec(context.Background(), "TRUNCATE accounts, session_cache")
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Account API", func() {
	backends := map[string]func() auth.SessionCache{
		"redis session cache": func() auth.SessionCache {
			mr := miniredis.NewMiniRedis()
			Expect(mr.Start()).To(Succeed())
			DeferCleanup(mr.Close)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(client.Close)
			return rediscache.New(client)
		},
		"postgres session cache": func() auth.SessionCache {
			return authpg.NewSessionCache(db.Pool)
		},
	}

	for name, newCache := range backends {
		Context("with the "+name, func() {
			var api *apiClient

			BeforeEach(func() {
				resetTables()
				api = newStack(newCache())
			})

			It("runs the account lifecycle", func() {
				reg := api.do(http.MethodPost, "/api/auth/register", "", alice())
				Expect(reg.status).To(Equal(http.StatusCreated))
				user := reg.body["user"].(map[string]any)
				Expect(user).NotTo(HaveKey("password"))
				Expect(user["accountNumber"]).To(HaveLen(10))
				token := tokenOf(reg)

				me := api.do(http.MethodGet, "/api/auth/getMe", token, nil)
				Expect(me.status).To(Equal(http.StatusOK))
				Expect(me.body["user"]).To(HaveKeyWithValue("userName", "alice"))

				byNumber := api.do(http.MethodGet, "/api/auth/getByAccountNumber?accountNumber="+user["accountNumber"].(string), token, nil)
				Expect(byNumber.status).To(Equal(http.StatusOK))
				Expect(byNumber.body["message"]).To(Equal("User found!"))

				del := api.do(http.MethodPost, "/api/auth/delete", token, nil)
				Expect(del.status).To(Equal(http.StatusNoContent))

				gone := api.do(http.MethodGet, "/api/auth/getMe", token, nil)
				Expect(gone.status).To(Equal(http.StatusNotFound))
			})

			It("logs in by email and rejects a wrong password", func() {
				Expect(api.do(http.MethodPost, "/api/auth/register", "", alice()).status).To(Equal(http.StatusCreated))

				ok := api.do(http.MethodPost, "/api/auth/login", "", map[string]any{
					"emailAddress": "alice@example.com",
					"password":     "secret1",
				})
				Expect(ok.status).To(Equal(http.StatusOK))
				Expect(tokenOf(ok)).NotTo(BeEmpty())

				bad := api.do(http.MethodPost, "/api/auth/login", "", map[string]any{
					"userName": "alice",
					"password": "wrong-password",
				})
				Expect(bad.status).To(Equal(http.StatusUnauthorized))
				Expect(bad.body).To(Equal(map[string]any{"message": "Invalid password"}))
			})

			It("rejects duplicate registrations", func() {
				Expect(api.do(http.MethodPost, "/api/auth/register", "", alice()).status).To(Equal(http.StatusCreated))

				dup := alice()
				dup["userName"] = "alice2"
				dup["identityNumber"] = "3201010101010002"
				resp := api.do(http.MethodPost, "/api/auth/register", "", dup)
				Expect(resp.status).To(Equal(http.StatusConflict))
			})

			It("updates only the password when only a password is sent", func() {
				reg := api.do(http.MethodPost, "/api/auth/register", "", alice())
				token := tokenOf(reg)

				var before string
				Expect(db.Pool.QueryRow(context.Background(),
					"SELECT password_hash FROM accounts WHERE user_name = 'alice'").Scan(&before)).To(Succeed())

				upd := api.do(http.MethodPost, "/api/auth/update", token, map[string]any{"password": "newsecret"})
				Expect(upd.status).To(Equal(http.StatusOK))
				Expect(upd.body["user"]).To(HaveKeyWithValue("userName", "alice"))

				var after, email string
				Expect(db.Pool.QueryRow(context.Background(),
					"SELECT password_hash, email_address FROM accounts WHERE user_name = 'alice'").Scan(&after, &email)).To(Succeed())
				Expect(after).NotTo(Equal(before))
				Expect(email).To(Equal("alice@example.com"))

				login := api.do(http.MethodPost, "/api/auth/login", "", map[string]any{"userName": "alice", "password": "newsecret"})
				Expect(login.status).To(Equal(http.StatusOK))
			})

			It("reports validation failures in field order", func() {
				resp := api.do(http.MethodPost, "/api/auth/register", "", map[string]any{
					"userName":     "al",
					"emailAddress": "not-an-email",
				})
				Expect(resp.status).To(Equal(http.StatusBadRequest))
				Expect(resp.body["message"]).To(HavePrefix("userName String must contain at least 4 character(s)"))
			})
		})
	}
})
