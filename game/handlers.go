package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"arcade/domain"
)

type Handler struct {
	lifecycle   *Lifecycle
	coordinator *Coordinator

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewHandler(lifecycle *Lifecycle, coordinator *Coordinator) *Handler {
	return &Handler{
		lifecycle:   lifecycle,
		coordinator: coordinator,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Register mounts the room command surface. The auth middleware must have
// set "id" on the context before any of these run.
func (h *Handler) Register(r gin.IRouter) {
	rooms := r.Group("/rooms")
	rooms.POST("/:kind", h.CreateOrJoinHandler)
	rooms.GET("/:kind/:roomid", h.StatusHandler)
	rooms.POST("/:kind/:roomid/move", h.MoveHandler)
	rooms.POST("/:kind/:roomid/leave", h.LeaveHandler)
	rooms.POST("/:kind/:roomid/restart", h.RestartHandler)
	rooms.GET("/:kind/:roomid/watch", h.WatchHandler)
}

type createOrJoinRequest struct {
	RoomID    string          `json:"roomId"`
	Spectator bool            `json:"spectator"`
	Config    json.RawMessage `json:"config"`
}

type moveRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) CreateOrJoinHandler(ctx *gin.Context) {
	actorID, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req createOrJoinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad-request-format"})
		return
	}
	room, err := h.lifecycle.CreateOrJoin(ctx.Request.Context(), GameKind(ctx.Param("kind")), req.RoomID, actorID, req.Spectator, req.Config)
	if err != nil {
		writeGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.coordinator.View(room))
}

func (h *Handler) StatusHandler(ctx *gin.Context) {
	if _, ok := requireActor(ctx); !ok {
		return
	}
	room, err := h.lifecycle.Get(ctx.Request.Context(), GameKind(ctx.Param("kind")), ctx.Param("roomid"))
	if err != nil {
		writeGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.coordinator.View(room))
}

func (h *Handler) MoveHandler(ctx *gin.Context) {
	actorID, ok := requireActor(ctx)
	if !ok {
		return
	}
	if !h.limiterFor(actorID).Allow() {
		ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too-many-moves"})
		return
	}
	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad-request-format"})
		return
	}
	room, err := h.coordinator.SubmitMove(ctx.Request.Context(), GameKind(ctx.Param("kind")), ctx.Param("roomid"), actorID, req.Payload)
	if err != nil {
		writeGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.coordinator.View(room))
}

func (h *Handler) LeaveHandler(ctx *gin.Context) {
	actorID, ok := requireActor(ctx)
	if !ok {
		return
	}
	_, err := h.lifecycle.Leave(ctx.Request.Context(), GameKind(ctx.Param("kind")), ctx.Param("roomid"), actorID)
	if err != nil {
		writeGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"left": true})
}

func (h *Handler) RestartHandler(ctx *gin.Context) {
	actorID, ok := requireActor(ctx)
	if !ok {
		return
	}
	room, err := h.lifecycle.Restart(ctx.Request.Context(), GameKind(ctx.Param("kind")), ctx.Param("roomid"), actorID)
	if err != nil {
		writeGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.coordinator.View(room))
}

// limiterFor hands out the per-actor move limiter: 1 move/s, burst of 5.
func (h *Handler) limiterFor(actorID string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()
	limiter, ok := h.limiters[actorID]
	if !ok {
		limiter = rate.NewLimiter(1, 5)
		h.limiters[actorID] = limiter
	}
	return limiter
}

func requireActor(ctx *gin.Context) (string, bool) {
	id := ctx.GetString("id")
	if id == "" {
		log.Error().
			Str("ip", ctx.ClientIP()).
			Str("path", ctx.FullPath()).
			Msg("actor id missing, auth middleware not applied?")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return "", false
	}
	return id, true
}

func writeGameError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "unknown-error"

	switch {
	case errors.Is(err, ErrRoomNotFound):
		status, code = http.StatusNotFound, ErrRoomNotFound.Error()
	case errors.Is(err, ErrUnknownGameKind):
		status, code = http.StatusNotFound, ErrUnknownGameKind.Error()
	case errors.Is(err, ErrRoomFull):
		status, code = http.StatusConflict, ErrRoomFull.Error()
	case errors.Is(err, ErrAlreadyJoined):
		status, code = http.StatusConflict, ErrAlreadyJoined.Error()
	case errors.Is(err, ErrGameAlreadyInProgress):
		status, code = http.StatusConflict, ErrGameAlreadyInProgress.Error()
	case errors.Is(err, ErrConcurrentModification):
		status, code = http.StatusConflict, ErrConcurrentModification.Error()
	case errors.Is(err, ErrNotAMember):
		status, code = http.StatusForbidden, ErrNotAMember.Error()
	case errors.Is(err, ErrNotYourTurn):
		status, code = http.StatusForbidden, ErrNotYourTurn.Error()
	case errors.Is(err, ErrInvalidPayload):
		status, code = http.StatusBadRequest, ErrInvalidPayload.Error()
	case errors.Is(err, ErrOutOfBounds):
		status, code = http.StatusBadRequest, ErrOutOfBounds.Error()
	case errors.Is(err, ErrInvalidRoomID):
		status, code = http.StatusBadRequest, ErrInvalidRoomID.Error()
	case errors.Is(err, ErrGameAlreadyOver):
		status, code = http.StatusGone, ErrGameAlreadyOver.Error()
	case errors.Is(err, domain.ErrStorageUnavailable):
		status, code = http.StatusServiceUnavailable, domain.ErrStorageUnavailable.Error()
	default:
		log.Error().Err(err).Msg("unexpected game error")
	}

	ctx.AbortWithStatusJSON(status, gin.H{"error": code, "detail": err.Error()})
}
