// Package proxy implements the paid request pipeline: resolve, rate limit,
// verify payment, forward upstream, settle, respond.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/relay402/server/internal/audit"
	"github.com/relay402/server/internal/errors"
	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/internal/metrics"
	"github.com/relay402/server/internal/paywall"
	"github.com/relay402/server/internal/ratelimit"
	"github.com/relay402/server/internal/routes"
	"github.com/relay402/server/internal/secrets"
	"github.com/relay402/server/internal/storage"
	"github.com/relay402/server/internal/upstream"
	"github.com/relay402/server/pkg/responders"
	"github.com/relay402/server/pkg/x402"
)

// Config holds the knobs the pipeline needs from application config.
type Config struct {
	AppBaseURL        string
	ForceTestnet      bool
	MaxTimeoutSeconds int
	AllowLocalhost    bool
	AllowOtherSchemes bool
}

// Handler serves monetized proxy requests.
type Handler struct {
	cfg         Config
	resolver    *routes.Resolver
	limiter     *ratelimit.Limiter
	facilitator x402.Facilitator
	renderer    *paywall.Renderer
	audit       *audit.Writer
	store       storage.Store
	cipher      *secrets.Cipher
	metrics     *metrics.Metrics
	client      *http.Client
	now         func() time.Time
}

// NewHandler wires up the proxy pipeline.
func NewHandler(cfg Config, resolver *routes.Resolver, limiter *ratelimit.Limiter,
	facilitator x402.Facilitator, renderer *paywall.Renderer, auditWriter *audit.Writer,
	store storage.Store, cipher *secrets.Cipher, m *metrics.Metrics, client *http.Client) *Handler {
	return &Handler{
		cfg:         cfg,
		resolver:    resolver,
		limiter:     limiter,
		facilitator: facilitator,
		renderer:    renderer,
		audit:       auditWriter,
		store:       store,
		cipher:      cipher,
		metrics:     m,
		client:      client,
		now:         time.Now,
	}
}

// ServeHTTP handles /{tenantSlug}/{endpointSlug}[/*] requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantSlug := chi.URLParam(r, "tenantSlug")
	endpointSlug := chi.URLParam(r, "endpointSlug")

	route, err := h.resolver.Resolve(r.Context(), tenantSlug, endpointSlug)
	h.serve(w, r, route, err)
}

// ServeCNAME handles requests arriving on a custom domain; the whole path is
// the upstream rest.
func (h *Handler) ServeCNAME(w http.ResponseWriter, r *http.Request) {
	route, err := h.resolver.ResolveHost(r.Context(), r.Host)
	h.serve(w, r, route, err)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, route routes.ResolvedRoute, resolveErr error) {
	start := h.now()
	log := logger.FromContext(r.Context())

	if resolveErr != nil {
		switch resolveErr {
		case routes.ErrNoRecipient:
			log.Error().
				Str("path", r.URL.Path).
				Msg("proxy.endpoint_without_recipient")
			errors.WriteSimpleError(w, errors.ErrCodeEndpointMisconfigured, "endpoint is not configured for payments")
		case routes.ErrNotFound:
			errors.WriteSimpleError(w, errors.ErrCodeEndpointNotFound, "endpoint not found")
		default:
			log.Error().Err(resolveErr).Msg("proxy.resolve_failed")
			errors.WriteSimpleError(w, errors.ErrCodeDatabaseError, "internal error")
		}
		return
	}

	ep := route.Endpoint
	clientIP := logger.ClientIP(r)
	browser := isBrowser(r)

	entry := storage.RequestLog{
		EndpointID: ep.ID,
		TenantID:   ep.TenantID,
		Path:       r.URL.Path,
		Method:     r.Method,
		ClientIP:   clientIP,
		UserAgent:  r.Header.Get("User-Agent"),
		IsBrowser:  browser,
	}
	finish := func(status int) {
		entry.Status = status
		entry.DurationMs = h.now().Sub(start).Milliseconds()
		h.audit.RecordRequest(context.WithoutCancel(r.Context()), entry)
		h.metrics.ObserveRequest(route.Tenant.Slug, ep.Slug, strconv.Itoa(status), h.now().Sub(start))
	}

	// Rate limit before any payment work; a limited request must cost nothing.
	// The key is the endpoint alone: the limit is the endpoint's total
	// admission budget, shared across clients, so the limiter stays bounded by
	// the number of endpoints.
	result := h.limiter.Check(ep.ID, ep.RateLimitPerSec, ratelimit.DefaultWindow)
	if !result.Allowed {
		h.metrics.ObserveRateLimit("endpoint", route.Tenant.Slug)
		entry.RateLimited = true
		ratelimit.Write429(w, result, h.now())
		finish(http.StatusTooManyRequests)
		return
	}
	ratelimit.SetHeaders(w, result)

	// Free endpoints skip the payment leg entirely.
	if ep.PriceUSD <= 0 {
		status := h.forward(w, r, route, "", nil, x402.PaymentRequirement{})
		finish(status)
		return
	}

	testnet := ep.Testnet || h.cfg.ForceTestnet
	requirement := x402.BuildRequirement(ep.PriceUSD, route.PayTo, testnet, h.cfg.MaxTimeoutSeconds)
	resource := x402.Resource{
		URL:         h.cfg.AppBaseURL + r.URL.Path,
		Description: ep.Description,
		MimeType:    "application/json",
	}
	required := x402.NewPaymentRequired(resource, requirement)

	payload := x402.ParsePaymentHeader(r)
	if payload == nil {
		if browser {
			h.metrics.ObservePaywallRender(route.Tenant.Slug, ep.Slug)
			h.renderer.Render(w, r, ep, required)
		} else {
			responders.JSON(w, http.StatusPaymentRequired, required)
		}
		finish(http.StatusPaymentRequired)
		return
	}

	verifyStart := h.now()
	verify := h.facilitator.Verify(r.Context(), payload, requirement)
	h.metrics.ObserveVerify(requirement.Network, h.now().Sub(verifyStart))
	if !verify.IsValid {
		reason := verify.InvalidReason
		if reason == "" {
			reason = "payment could not be verified"
		}
		log.Warn().Str("reason", reason).Msg("proxy.payment_rejected")
		h.metrics.ObservePaymentFailure(route.Tenant.Slug, "verify")
		errors.WriteError(w, errors.ErrCodePaymentInvalid, "payment verification failed", map[string]any{
			"reason": reason,
		})
		finish(http.StatusPaymentRequired)
		return
	}

	payer := x402.ExtractPayer(verify, payload)
	rawPayload, _ := json.Marshal(payload)
	paymentID := h.audit.RecordPayment(r.Context(), storage.Payment{
		EndpointID:    ep.ID,
		TenantID:      ep.TenantID,
		Payer:         payer,
		AmountUSD:     ep.PriceUSD,
		Network:       requirement.Network,
		ChainID:       int64(x402.ChainIDFor(testnet)),
		Status:        storage.PaymentVerified,
		Payload:       rawPayload,
		RequestPath:   r.URL.Path,
		RequestMethod: r.Method,
	})
	entry.PaymentID = paymentID
	entry.Paid = true
	h.metrics.ObservePayment(route.Tenant.Slug, requirement.Network, int64(ep.PriceUSD))

	log.Info().
		Str("payment_id", paymentID).
		Str("payer", logger.TruncateAddress(payer)).
		Str("amount", ep.PriceUSD.Atomic()).
		Str("network", requirement.Network).
		Msg("proxy.payment_verified")

	status := h.forward(w, r, route, paymentID, payload, requirement)
	finish(status)
}

// forward assembles and sends the upstream request, settles the payment once
// the upstream has answered, and streams the response back. Returns the status
// written to the client.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, route routes.ResolvedRoute,
	paymentID string, payload *x402.PaymentPayload, requirement x402.PaymentRequirement) int {

	ep := route.Endpoint
	log := logger.FromContext(r.Context())
	paid := paymentID != ""

	// Settlement and audit writes must survive the client hanging up.
	detached := context.WithoutCancel(r.Context())

	failPayment := func(msg string) {
		if !paid {
			return
		}
		h.audit.UpdatePayment(detached, paymentID, storage.PaymentUpdate{
			Status:       storage.PaymentFailed,
			ErrorMessage: msg,
		})
	}

	if err := upstream.ValidateURL(ep.UpstreamURL, h.cfg.AllowLocalhost, h.cfg.AllowOtherSchemes); err != nil {
		log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("proxy.upstream_url_invalid")
		failPayment("upstream url invalid")
		errors.WriteSimpleError(w, errors.ErrCodeEndpointMisconfigured, "endpoint is misconfigured")
		return http.StatusInternalServerError
	}

	authHeaders, authQuery, err := upstream.BuildAuth(r.Context(), ep, h.secretLookup(ep.TenantID))
	if err != nil {
		log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("proxy.auth_build_failed")
		failPayment("auth configuration invalid")
		errors.WriteSimpleError(w, errors.ErrCodeEndpointMisconfigured, "endpoint is misconfigured")
		return http.StatusInternalServerError
	}

	target, err := upstream.BuildTargetURL(ep, restPath(r), r.URL.Query(), authQuery)
	if err != nil {
		log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("proxy.target_url_failed")
		failPayment("upstream url invalid")
		errors.WriteSimpleError(w, errors.ErrCodeEndpointMisconfigured, "endpoint is misconfigured")
		return http.StatusInternalServerError
	}

	upReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		log.Error().Err(err).Msg("proxy.build_upstream_request_failed")
		failPayment("upstream request invalid")
		errors.WriteSimpleError(w, errors.ErrCodeInternalError, "internal error")
		return http.StatusInternalServerError
	}
	copyInboundHeaders(upReq.Header, r.Header, authHeaders)

	upstreamStart := h.now()
	resp, err := h.client.Do(upReq)
	h.metrics.ObserveUpstream(route.Tenant.Slug, ep.Slug, h.now().Sub(upstreamStart), err)
	if err != nil {
		// Forward precedes settle, so the payer is never charged for a
		// response that did not arrive.
		log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("proxy.upstream_unreachable")
		failPayment("upstream unreachable")
		errors.WriteSimpleError(w, errors.ErrCodeUpstreamUnreachable, "upstream service unavailable")
		return http.StatusBadGateway
	}
	defer resp.Body.Close()

	// Settle after the upstream answered but before the client sees a byte.
	if paid {
		settleStart := h.now()
		settlement := h.facilitator.Settle(detached, payload, requirement)
		h.metrics.ObserveSettlement(requirement.Network, settlement.Success, h.now().Sub(settleStart))

		rawSettlement, _ := json.Marshal(settlement)
		if settlement.Success {
			now := h.now().UTC()
			h.audit.UpdatePayment(detached, paymentID, storage.PaymentUpdate{
				Status:     storage.PaymentSettled,
				TxHash:     settlement.Transaction,
				Settlement: rawSettlement,
				SettledAt:  &now,
			})
			encoded := x402.EncodeSettlementHeader(settlement)
			w.Header().Set(x402.HeaderPaymentResponse, encoded)
			w.Header().Set(x402.HeaderPaymentResponseAlt, encoded)
			log.Info().
				Str("payment_id", paymentID).
				Str("tx", logger.TruncateAddress(settlement.Transaction)).
				Msg("proxy.payment_settled")
		} else {
			// The response still goes out; the seller eats the failed
			// settlement rather than the payer eating a paid-for error.
			h.audit.UpdatePayment(detached, paymentID, storage.PaymentUpdate{
				Status:       storage.PaymentFailed,
				Settlement:   rawSettlement,
				ErrorMessage: settlement.ErrorReason,
			})
			log.Error().
				Str("payment_id", paymentID).
				Str("reason", settlement.ErrorReason).
				Msg("proxy.settlement_failed")
		}
	}

	copyUpstreamHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Debug().Err(err).Msg("proxy.response_stream_interrupted")
	}
	return resp.StatusCode
}

// restPath is the part of the request path appended to the upstream URL.
// Path-routed requests carry it in the chi wildcard; CNAME requests use the
// whole path.
func restPath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.URLParam("*")
	}
	return strings.TrimPrefix(r.URL.Path, "/")
}

// secretLookup builds the secret resolution function for a tenant.
func (h *Handler) secretLookup(tenantID string) secrets.LookupFunc {
	return func(ctx context.Context, name string) (string, bool) {
		if h.cipher == nil {
			return "", false
		}
		secret, err := h.store.GetSecret(ctx, tenantID, name)
		if err != nil {
			return "", false
		}
		value, err := h.cipher.Decrypt(secret.Ciphertext, secret.Nonce)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Error().
				Str("secret", name).
				Msg("proxy.secret_decrypt_failed")
			return "", false
		}
		return value, true
	}
}
