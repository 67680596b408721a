package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/present/rest/middleware"
	"github.com/cryptoguard/cryptoguard/internal/present/rest/presenter"
	"github.com/cryptoguard/cryptoguard/internal/service"
	"github.com/cryptoguard/cryptoguard/internal/usecase"
	"github.com/cryptoguard/cryptoguard/schemas"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type Handler struct {
	config       domain.Config
	attestations *usecase.AttestationUsecase
	identities   *usecase.IdentityUsecase
	ratings      *usecase.RatingUsecase
	comments     *usecase.CommentUsecase
	status       *usecase.StatusUsecase
	auth         *service.AuthService
	signal       *service.SignalService
}

func NewHandler(
	config domain.Config,
	attestations *usecase.AttestationUsecase,
	identities *usecase.IdentityUsecase,
	ratings *usecase.RatingUsecase,
	comments *usecase.CommentUsecase,
	status *usecase.StatusUsecase,
	auth *service.AuthService,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:       config,
		attestations: attestations,
		identities:   identities,
		ratings:      ratings,
		comments:     comments,
		status:       status,
		auth:         auth,
		signal:       signal,
	}
}

// RegisterRoutes mounts the API. throttle wraps write routes and may be nil.
func (h *Handler) RegisterRoutes(e *echo.Echo, throttle echo.MiddlewareFunc) {
	writes := []echo.MiddlewareFunc{middleware.RequireIdentity}
	if throttle != nil {
		writes = append(writes, throttle)
	}

	e.GET("/.well-known/cryptoguard", h.handleWellKnown)
	e.POST("/commit", h.handleCommit)
	e.GET("/attestations", h.handleAttestations)
	e.GET("/attestations/:id", h.handleAttestation)
	e.GET("/realtime", h.handleRealtime)

	api := e.Group("/api/v1")
	api.GET("/session/challenge", h.handleChallenge)
	api.POST("/session", h.handleConnect)
	api.GET("/session/accounts", h.handleAccounts)
	api.DELETE("/session", h.handleLogout, middleware.RequireIdentity)
	api.GET("/me", h.handleMe, middleware.RequireIdentity)

	api.GET("/ratings", h.handleRatings)
	api.POST("/ratings", h.handleRate, writes...)
	api.GET("/flagged", h.handleFlagged)

	api.GET("/comments", h.handleComments)
	api.GET("/comments/history", h.handleCommentHistory)
	api.POST("/comments", h.handleAddComment, writes...)
	api.POST("/comments/:id/votes", h.handleVote, writes...)

	api.GET("/status", h.handleStatus)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := cryptoguard.WellKnown{
		Version:  "1.0",
		Domain:   h.config.FQDN,
		Attester: h.config.Attester,
		Schemas:  schemas.All,
		Endpoints: map[string]cryptoguard.Endpoint{
			cryptoguard.EndpointCommit: {
				Template: "/commit",
				Method:   "POST",
			},
			cryptoguard.EndpointAttestation: {
				Template: "/attestations/{id}",
				Method:   "GET",
			},
			cryptoguard.EndpointAttestations: {
				Template: "/attestations",
				Method:   "GET",
				Query:    &[]string{"schema", "indexingValue", "limit"},
			},
			cryptoguard.EndpointRatings: {
				Template: "/api/v1/ratings",
				Method:   "GET",
				Query:    &[]string{"url"},
			},
			cryptoguard.EndpointFlagged: {
				Template: "/api/v1/flagged",
				Method:   "GET",
				Query:    &[]string{"limit"},
			},
			cryptoguard.EndpointComments: {
				Template: "/api/v1/comments",
				Method:   "GET",
				Query:    &[]string{"url"},
			},
			cryptoguard.EndpointStatus: {
				Template: "/api/v1/status",
				Method:   "GET",
				Query:    &[]string{"url"},
			},
			cryptoguard.EndpointSession: {
				Template: "/api/v1/session",
				Method:   "POST",
			},
			cryptoguard.EndpointRealtime: {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleCommit(c echo.Context) error {
	ctx := c.Request().Context()

	var sd cryptoguard.SignedDocument
	err := c.Bind(&sd)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	attestation, err := h.attestations.Commit(ctx, sd)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, attestation)
}

func (h *Handler) handleAttestations(c echo.Context) error {
	ctx := c.Request().Context()

	schema := c.QueryParam("schema")
	if schema == "" {
		return presenter.BadRequestMessage(c, "schema is required")
	}

	indexingValue := c.QueryParam("indexingValue")
	if indexingValue == "" {
		limit, err := parseLimit(c.QueryParam("limit"))
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		attestations, err := h.attestations.Recent(ctx, schema, limit)
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.OK(c, attestations)
	}

	attestations, err := h.attestations.Query(ctx, schema, indexingValue)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, attestations)
}

func (h *Handler) handleAttestation(c echo.Context) error {
	ctx := c.Request().Context()

	if c.QueryParam("signed") == "true" {
		sd, err := h.attestations.GetSigned(ctx, c.Param("id"))
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.OK(c, sd)
	}

	attestation, err := h.attestations.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, attestation)
}

func (h *Handler) handleChallenge(c echo.Context) error {
	ctx := c.Request().Context()

	challenge, err := h.auth.Challenge(ctx, c.QueryParam("address"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, challenge)
}

func (h *Handler) handleConnect(c echo.Context) error {
	ctx := c.Request().Context()

	var input service.ConnectInput
	err := c.Bind(&input)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	session, err := h.auth.Connect(ctx, input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, session)
}

func (h *Handler) handleAccounts(c echo.Context) error {
	requester := middleware.RequesterID(c.Request().Context())
	if requester == "" {
		return presenter.OK(c, []string{})
	}
	return presenter.OK(c, []string{requester})
}

func (h *Handler) handleMe(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := h.identities.Get(ctx, middleware.RequesterID(ctx))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, identity)
}

func (h *Handler) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	tokenID, _ := ctx.Value(domain.RequesterTokenIdCtxKey).(string)
	expiresAt, _ := ctx.Value(domain.RequesterTokenExpiryCtxKey).(time.Time)

	err := h.auth.Logout(ctx, tokenID, expiresAt)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleRatings(c echo.Context) error {
	ctx := c.Request().Context()

	url := c.QueryParam("url")
	if url == "" {
		return presenter.BadRequestMessage(c, "url is required")
	}

	summary, err := h.ratings.Summary(ctx, url, middleware.RequesterID(ctx))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, summary)
}

type rateRequest struct {
	URL    string `json:"url"`
	IsSafe *bool  `json:"isSafe"`
}

func (h *Handler) handleRate(c echo.Context) error {
	ctx := c.Request().Context()

	var req rateRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.IsSafe == nil {
		return presenter.BadRequestMessage(c, "isSafe is required")
	}

	summary, err := h.ratings.Rate(ctx, usecase.RateInput{
		URL:     req.URL,
		Address: middleware.RequesterID(ctx),
		Email:   middleware.RequesterEmail(ctx),
		IsSafe:  *req.IsSafe,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, summary)
}

func (h *Handler) handleFlagged(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	sites, err := h.ratings.Flagged(ctx, limit)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, sites)
}

func (h *Handler) handleComments(c echo.Context) error {
	ctx := c.Request().Context()

	url := c.QueryParam("url")
	if url == "" {
		return presenter.BadRequestMessage(c, "url is required")
	}

	comments, err := h.comments.List(ctx, url, middleware.RequesterID(ctx))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, comments)
}

func (h *Handler) handleCommentHistory(c echo.Context) error {
	ctx := c.Request().Context()

	url := c.QueryParam("url")
	author := c.QueryParam("author")
	if url == "" || author == "" {
		return presenter.BadRequestMessage(c, "url and author are required")
	}

	history, err := h.comments.History(ctx, url, author)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, history)
}

type commentRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (h *Handler) handleAddComment(c echo.Context) error {
	ctx := c.Request().Context()

	var req commentRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	comments, err := h.comments.Add(ctx, usecase.AddCommentInput{
		URL:     req.URL,
		Address: middleware.RequesterID(ctx),
		Email:   middleware.RequesterEmail(ctx),
		Text:    req.Text,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, comments)
}

type voteRequest struct {
	Upvote *bool `json:"upvote"`
}

func (h *Handler) handleVote(c echo.Context) error {
	ctx := c.Request().Context()

	var req voteRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Upvote == nil {
		return presenter.BadRequestMessage(c, "upvote is required")
	}

	count, err := h.comments.Vote(ctx, usecase.VoteInput{
		CommentID: c.Param("id"),
		Address:   middleware.RequesterID(ctx),
		Email:     middleware.RequesterEmail(ctx),
		Upvote:    *req.Upvote,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, count)
}

func (h *Handler) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.status.Project(ctx, c.QueryParam("url"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, status)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit: %s", raw)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if !h.signal.Enabled() {
		return presenter.NotFound(c, "realtime is not enabled")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan cryptoguard.Event)

	go func() {
		err := h.signal.Realtime(ctx, input, output)
		if err != nil {
			slog.ErrorContext(ctx, "realtime subscription failed", slog.String("error", err.Error()), slog.String("module", "socket"))
			cancel()
		}
	}()

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Channels:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Channels),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
