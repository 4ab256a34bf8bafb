package cmd

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/thaohienhomes/phochat-payments/internal/metrics"
)

func encodedPublicKey() string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	Expect(err).NotTo(HaveOccurred())
	return base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func adminHash() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("ops-secret"), bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	return string(hash)
}

var _ = Describe("loadConfig", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		GinkgoT().Setenv("APP_ENV", "")
		GinkgoT().Setenv("DOCKER_ENV", "")
	})

	writeConfig := func(body string) {
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600)).To(Succeed())
	}

	It("reads config.yml and fills defaults", func() {
		writeConfig(fmt.Sprintf(`
http_server:
  env: development
  base_url: https://pay.example.com
database:
  source: postgres://localhost/phochat
security:
  jwt_public_key: %s
  admin_token_hash: "%s"
payment:
  client_id: client
  api_key: api
  checksum_key: checksum
reconcile:
  older_than: 20m
`, encodedPublicKey(), adminHash()))

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Reconcile.OlderThan).To(Equal(20 * time.Minute))
		Expect(cfg.Reconcile.Interval).To(Equal(30 * time.Minute))
		Expect(cfg.Payment.APIURL).To(Equal("https://api-merchant.payos.vn"))
		Expect(cfg.Observability.Metrics.Path).To(Equal("/metrics"))
	})

	It("rejects a config without security settings", func() {
		writeConfig(`
http_server:
  base_url: https://pay.example.com
database:
  source: postgres://localhost/phochat
payment:
  client_id: client
  api_key: api
  checksum_key: checksum
`)

		_, err := loadConfig(dir)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("JWTPublicKey"))
	})

	It("fails when config.yml is missing", func() {
		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("error reading config")))
	})

	It("reads the environment in production", func() {
		GinkgoT().Setenv("APP_ENV", "production")
		GinkgoT().Setenv("PHOCHAT_HTTP_SERVER_BASE_URL", "https://pay.example.com")
		GinkgoT().Setenv("PHOCHAT_HTTP_SERVER_PORT", "9090")
		GinkgoT().Setenv("PHOCHAT_DATABASE_SOURCE", "postgres://db/phochat")
		GinkgoT().Setenv("PHOCHAT_SECURITY_JWT_PUBLIC_KEY", encodedPublicKey())
		GinkgoT().Setenv("PHOCHAT_SECURITY_ADMIN_TOKEN_HASH", adminHash())
		GinkgoT().Setenv("PHOCHAT_PAYMENT_CLIENT_ID", "client")
		GinkgoT().Setenv("PHOCHAT_PAYMENT_API_KEY", "api")
		GinkgoT().Setenv("PHOCHAT_PAYMENT_CHECKSUM_KEY", "checksum")
		GinkgoT().Setenv("PHOCHAT_RECONCILE_OLDER_THAN", "5m")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Database.Source).To(Equal("postgres://db/phochat"))
		Expect(cfg.Reconcile.OlderThan).To(Equal(5 * time.Minute))
	})
})

var _ = Describe("commands", func() {
	It("registers every entry point", func() {
		var names []string
		for _, c := range rootCmd.Commands() {
			names = append(names, c.Name())
		}
		Expect(names).To(ContainElements("server", "migrate", "reconcile", "worker", "event", "admin"))
	})

	It("hashes an admin token", func() {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"admin", "hash-token", "ops-secret"})
		DeferCleanup(func() {
			rootCmd.SetOut(nil)
			rootCmd.SetArgs(nil)
		})

		Expect(rootCmd.Execute()).To(Succeed())
		hash := strings.TrimSpace(out.String())
		Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte("ops-secret"))).To(Succeed())
	})

	It("lets --older-than override the configured cutoff, zero included", func() {
		DeferCleanup(func() {
			reconcileCmd.Flags().Lookup("older-than").Changed = false
			reconcileOlderThan = 0
		})

		Expect(sweepOlderThan(reconcileCmd, 15*time.Minute)).To(Equal(15 * time.Minute))

		Expect(reconcileCmd.Flags().Set("older-than", "0s")).To(Succeed())
		Expect(sweepOlderThan(reconcileCmd, 15*time.Minute)).To(BeZero())

		Expect(reconcileCmd.Flags().Set("older-than", "2m")).To(Succeed())
		Expect(sweepOlderThan(reconcileCmd, 15*time.Minute)).To(Equal(2 * time.Minute))
	})

	It("serves the worker's job metrics on the configured path", func() {
		registry := prometheus.NewRegistry()
		jobs := metrics.NewCronJobMetrics(registry)
		jobs.IncSuccess("reconcile")
		jobs.IncSkipped("reconcile")

		server := workerMetricsServer(":0", "/internal/metrics", registry)
		Expect(server.Addr).To(Equal(":0"))

		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`phochat_job_success_total{job="reconcile"} 1`))
		Expect(rec.Body.String()).To(ContainSubstring(`phochat_job_skipped_total{job="reconcile"} 1`))

		rec = httptest.NewRecorder()
		workerMetricsServer(":0", "", registry).Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("publishes sample events", func() {
		Expect(publishTestEvent("succeeded")).To(Succeed())
		Expect(publishTestEvent("late_payment")).To(Succeed())
		Expect(publishTestEvent("pending")).To(HaveOccurred())
	})
})
