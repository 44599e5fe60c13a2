package debt_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-analyzer/internal/debt"
)

func signedToken(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	Expect(err).NotTo(HaveOccurred())
	return token
}

func loginHandler(token string) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, "/login"),
		ghttp.VerifyHeaderKV("x-api-key", "login-key"),
		ghttp.VerifyJSON(`{"clientUsername":"user","password":"secret"}`),
		ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"accessToken": token}),
	)
}

var _ = Describe("TokenSource", func() {
	var (
		server *ghttp.Server
		source *debt.TokenSource
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		source = debt.NewTokenSource(server.URL()+"/login", debt.Credentials{
			APIKey: "login-key", Username: "user", Password: "secret",
		}, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	It("caches a token until it expires", func() {
		token := signedToken(time.Now().Add(time.Hour))
		server.AppendHandlers(loginHandler(token))

		first, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(token))

		second, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(token))
		Expect(server.ReceivedRequests()).To(HaveLen(1))
	})

	It("logs in again once the token has expired", func() {
		expired := signedToken(time.Now().Add(-time.Minute))
		fresh := signedToken(time.Now().Add(time.Hour))
		server.AppendHandlers(loginHandler(expired), loginHandler(fresh))

		_, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())

		token, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal(fresh))
		Expect(server.ReceivedRequests()).To(HaveLen(2))
	})

	It("keeps opaque tokens until invalidated", func() {
		server.AppendHandlers(loginHandler("opaque"), loginHandler("opaque-2"))

		token, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("opaque"))

		source.Invalidate()
		token, err = source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("opaque-2"))
	})

	It("fails when the response has no token", func() {
		server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{}))

		_, err := source.Token(context.Background())
		Expect(err).To(MatchError(debt.ErrLogin))
	})

	It("fails on a rejected login", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, "bad credentials"))

		_, err := source.Token(context.Background())
		Expect(err).To(MatchError(debt.ErrLogin))

		var statusErr *debt.StatusError
		Expect(err).To(MatchError(ContainSubstring("bad credentials")))
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})

type staticTokens struct {
	token       string
	invalidated int
}

func (s *staticTokens) Token(context.Context) (string, error) { return s.token, nil }
func (s *staticTokens) Invalidate()                           { s.invalidated++ }

var _ = Describe("Client", func() {
	var (
		server *ghttp.Server
		tokens *staticTokens
		client *debt.Client
		query  debt.Query
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		tokens = &staticTokens{token: "tok"}
		client = debt.NewClient(server.URL()+"/debts", "api-key", tokens, nil, nil)
		query = debt.NewQuery("EDN", "M1", []byte(`{"NIS":"123456"}`), "")
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the query with both keys", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/debts"),
			ghttp.VerifyHeaderKV("x-api-key", "api-key"),
			ghttp.VerifyHeaderKV("x-authorization-token", "tok"),
			ghttp.VerifyHeaderKV("Accept", "application/json"),
			ghttp.VerifyJSON(`{
				"companyCode": "EDN",
				"modalityId": "M1",
				"queryData": {"NIS": "123456"},
				"externalRequestId": "`+query.ExternalRequestID+`",
				"externalClientId": "pdf-analyzer"
			}`),
			ghttp.RespondWith(http.StatusOK, `{"debts":[{"amount":"1500.00"}]}`),
		))

		body, err := client.Query(context.Background(), query)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(MatchJSON(`{"debts":[{"amount":"1500.00"}]}`))
	})

	It("returns a status error and drops the token when unauthorized", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"message":"expired"}`))

		_, err := client.Query(context.Background(), query)
		var statusErr *debt.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(tokens.invalidated).To(Equal(1))
	})

	It("does not send an invalid query", func() {
		_, err := client.Query(context.Background(), debt.Query{})
		Expect(err).To(MatchError(debt.ErrInvalidQuery))
		Expect(server.ReceivedRequests()).To(BeEmpty())
	})
})
