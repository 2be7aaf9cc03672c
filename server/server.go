// Package server exposes the payment API over HTTP: quote and record a
// payment, register a transaction for verification, and answer status
// polls. Verification itself happens in the background confirmer; the
// handlers here never touch the chain.
package server

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/verification"
)

// Server wires the verification service into a fiber app.
type Server struct {
	app      *fiber.App
	svc      *verification.Service
	validate *validator.Validate
	log      logger.Logger

	contract string
	chainID  int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsEndpoint mounts the Prometheus scrape handler at /metrics.
func WithMetricsEndpoint() Option {
	return func(s *Server) {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
}

// New builds the HTTP server around a verification service. The payment
// contract address and chain ID are echoed in every quote so clients
// know where to send funds.
func New(svc *verification.Service, contract string, chainID int64, opts ...Option) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "arcadepay",
			DisableStartupMessage: true,
		}),
		svc:      svc,
		validate: validator.New(),
		log:      logger.NoopLogger{},
		contract: contract,
		chainID:  chainID,
	}
	s.app.Use(recover.New())
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/payments/initiate", s.handleInitiate)
	s.app.Post("/payments/verify", s.handleVerify)
	s.app.Get("/payments/verify", s.handleStatus)
}

// App returns the underlying fiber app, used by tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr until Shutdown is called.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

type initiateRequest struct {
	TokenID string `json:"tokenId" validate:"required"`
	Action  string `json:"action" validate:"required"`
}

func (s *Server) handleInitiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed JSON body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	action := types.PaymentAction(req.Action)
	if !action.Valid() {
		return badRequest(c, "unknown action "+req.Action)
	}

	quote, err := s.svc.Quote(c.Context(), req.TokenID, action, s.contract, s.chainID)
	if err != nil {
		return s.fail(c, err)
	}

	s.log.Info("payment quoted", map[string]any{
		"token":  req.TokenID,
		"action": req.Action,
		"amount": quote.AmountFormatted,
	})
	return c.JSON(fiber.Map{
		"contractAddress": quote.ContractAddress,
		"tokenAddress":    quote.TokenAddress,
		"amount":          quote.Amount.String(),
		"amountFormatted": quote.AmountFormatted,
		"distribution": fiber.Map{
			"writerShare":   quote.Distribution.WriterShare.String(),
			"platformShare": quote.Distribution.PlatformShare.String(),
			"creatorShare":  quote.Distribution.CreatorShare.String(),
			"payerRefund":   quote.Distribution.PayerRefund.String(),
		},
		"chainId": quote.ChainID,
	})
}

type verifyRequest struct {
	TransactionHash string `json:"transactionHash" validate:"required,len=66"`
	TokenID         string `json:"tokenId" validate:"required"`
	Action          string `json:"action" validate:"required"`
	UserID          string `json:"userId"`
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed JSON body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := s.svc.Initiate(c.Context(), req.TransactionHash, req.TokenID, types.PaymentAction(req.Action))
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(result)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	paymentID := c.Query("paymentId")
	txHash := c.Query("transactionHash")
	if paymentID == "" && txHash == "" {
		return badRequest(c, "paymentId or transactionHash is required")
	}

	status, err := s.svc.Status(c.Context(), paymentID, txHash)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(status)
}

// fail maps a service error onto an HTTP status with a structured body.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var arcadeErr *types.ArcadeError
	if !errors.As(err, &arcadeErr) {
		s.log.Error("request failed", map[string]any{"error": err.Error()})
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
	}

	status := fiber.StatusInternalServerError
	switch arcadeErr.Code {
	case types.ErrConfig, types.ErrVerification:
		status = fiber.StatusBadRequest
	case types.ErrRecordNotFound:
		status = fiber.StatusNotFound
	}
	return errorJSON(c, status, arcadeErr.Code, arcadeErr.Message)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return errorJSON(c, fiber.StatusBadRequest, "BAD_REQUEST", msg)
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": msg},
	})
}
