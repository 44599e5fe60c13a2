package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/invoice-analyzer/internal/extraction"
	"github.com/zombor/invoice-analyzer/internal/matching"
	"github.com/zombor/invoice-analyzer/internal/metrics"
	"github.com/zombor/invoice-analyzer/internal/registry"
	"github.com/zombor/invoice-analyzer/internal/vision"
)

// scriptedModel answers model calls in order
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Complete(ctx context.Context, prompt string, img vision.Image) (string, error) {
	if m.calls >= len(m.responses) {
		return "", errors.New("unexpected model call")
	}
	m.calls++
	return m.responses[m.calls-1], nil
}

func (m *scriptedModel) Close() error {
	return nil
}

func invoicePNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Analysis flow", func() {
	var (
		model       *scriptedModel
		m           *metrics.Metrics
		db          *BoltDB
		ghServer    *ghttp.Server
		storagePath string
	)

	BeforeEach(func() {
		tmpDir := GinkgoT().TempDir()
		storagePath = filepath.Join(tmpDir, "invoices")

		var err error
		db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err := NewLocalStorage(storagePath)
		Expect(err).NotTo(HaveOccurred())

		companies := registry.NewStaticStore([]registry.CompanyRecord{{
			CompanyCode: "MTG",
			CompanyName: "Metrogas S.A.",
			CompanyType: "gas",
			Modalities: []registry.Modality{{
				ModalityID:    "7",
				ModalityTitle: "Número de cuenta",
				QueryData: registry.QueryData{Form: registry.FormList, Items: []registry.IdentifierSpec{
					{IdentifierName: "CUENTA", Description: "Número de cuenta", DataType: registry.DataTypeNumeric},
				}},
			}},
		}})

		model = &scriptedModel{}
		m = metrics.New(prometheus.NewRegistry())
		analyzer := extraction.NewAnalyzerWithDeps(companies, model, matching.NewMatcher(), slog.Default(), m)
		service := NewService(db, analyzer, store, nil, "")
		server := NewServer(service, BasicAuth{}, "test", nil)

		ghServer = ghttp.NewServer()
		ghServer.RouteToHandler("POST", "/analyze", server.ServeHTTP)
		ghServer.RouteToHandler("GET", "/api/analyses", server.ServeHTTP)
		ghServer.RouteToHandler("POST", "/query-debt", server.ServeHTTP)
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	upload := func() map[string]any {
		body, formType := multipartBody("metrogas.png", "image/png", invoicePNG())
		resp, err := http.Post(ghServer.URL()+"/analyze", formType, body)
		Expect(err).NotTo(HaveOccurred())
		return decodeBody(resp)
	}

	When("the model reads the invoice", func() {
		BeforeEach(func() {
			model.responses = []string{
				"```json\n{\"company_names\": [\"MetroGAS\"], \"category\": \"Gas\"}\n```",
				`{"Número de cuenta": "000-123 456", "valor_factura": 2345.5, "fecha_vencimiento": "15/03/2024", "nombre_cliente": "Ana Gómez"}`,
			}
		})

		It("returns and stores the invoice record", func() {
			body := upload()
			Expect(body).To(HaveKeyWithValue("success", true))

			data := body["data"].(map[string]any)
			Expect(data).To(HaveKeyWithValue("companyCode", "MTG"))
			Expect(data).To(HaveKeyWithValue("category", "gas"))
			Expect(data).To(HaveKeyWithValue("valor_factura", "2345.50"))
			Expect(data).To(HaveKeyWithValue("fecha_vencimiento", "2024-03-15"))
			modalities := data["modalities"].([]any)
			Expect(modalities).To(HaveLen(1))
			Expect(modalities[0]).To(HaveKeyWithValue("identifiersEncontrados", HaveKeyWithValue("CUENTA", "000123456")))

			analyses, err := db.ListAnalyses()
			Expect(err).NotTo(HaveOccurred())
			Expect(analyses).To(HaveLen(1))
			Expect(filepath.Join(storagePath, analyses[0].Filename)).To(BeARegularFile())

			Expect(testutil.ToFloat64(m.AnalysisOutcome.WithLabelValues("success"))).To(Equal(1.0))
		})

		It("feeds the found identifiers into a debt query", func() {
			body := upload()
			modalities := body["data"].(map[string]any)["modalities"].([]any)
			identifiers, err := json.Marshal(modalities[0].(map[string]any)["identifiersEncontrados"])
			Expect(err).NotTo(HaveOccurred())

			req, err := json.Marshal(map[string]any{
				"companyCode": "MTG",
				"modalityId":  "7",
				"queryData":   json.RawMessage(identifiers),
			})
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.Post(ghServer.URL()+"/query-debt", "application/json", bytes.NewReader(req))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeBody(resp)["data"]).To(HaveKeyWithValue("queryData", HaveKeyWithValue("CUENTA", "000123456")))
		})
	})

	When("the company is not in the registry", func() {
		BeforeEach(func() {
			model.responses = []string{`{"company_names": ["Aysa"], "category": "agua"}`}
		})

		It("stores a failed analysis and reports the reason", func() {
			body := upload()
			Expect(body).To(HaveKeyWithValue("success", false))
			Expect(body).To(HaveKeyWithValue("reason", "company_not_found"))

			analyses, err := db.ListAnalyses()
			Expect(err).NotTo(HaveOccurred())
			Expect(analyses).To(HaveLen(1))
			Expect(analyses[0].Status).To(Equal(StatusFailed))
			Expect(analyses[0].Filename).To(BeEmpty())

			Expect(testutil.ToFloat64(m.AnalysisOutcome.WithLabelValues("company_not_found"))).To(Equal(1.0))
		})
	})
})
