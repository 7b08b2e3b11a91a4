// Package api exposes the booking lifecycle over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookingflow/auth"
	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/lifecycle"
)

// Bookings is the lifecycle surface served by the API.
type Bookings interface {
	Create(ctx context.Context, customer directory.User, p lifecycle.CreateParams) (booking.Job, error)
	StoreJobEmail(ctx context.Context, p lifecycle.StoreEmailParams, actor directory.User) (booking.Job, error)
	Accept(ctx context.Context, jobID int64, translator directory.User) (lifecycle.AcceptResult, error)
	AcceptWithID(ctx context.Context, jobID int64, translator directory.User) (lifecycle.AcceptResult, error)
	Cancel(ctx context.Context, jobID int64, actor directory.User) (lifecycle.CancelResult, error)
	EndSession(ctx context.Context, jobID int64, requester directory.User) (lifecycle.EndResult, error)
	CustomerNoShow(ctx context.Context, jobID int64) (booking.Job, error)
	Reopen(ctx context.Context, jobID, requesterID int64) (lifecycle.ReopenResult, error)
	ResendNotifications(ctx context.Context, jobID int64) (bool, error)
	ResendSMSNotifications(ctx context.Context, jobID int64) (int, error)
	UpdateDistanceFeed(ctx context.Context, feed lifecycle.DistanceFeed, editor directory.User) error
	UpdateJob(ctx context.Context, id int64, p lifecycle.UpdateParams, editor directory.User) (lifecycle.Ack, error)
	PotentialJobs(ctx context.Context, translator directory.User) ([]booking.Job, error)
	UserJobs(ctx context.Context, viewer directory.User, userID int64) (lifecycle.UserJobs, error)
	UserHistory(ctx context.Context, viewer directory.User, userID int64, page int) (lifecycle.JobPage, error)
	Job(ctx context.Context, viewer directory.User, id int64) (lifecycle.JobDetail, error)
}

// Accounts issues and checks API tokens.
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (directory.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (directory.User, error)
}

type Deps struct {
	Bookings Bookings
	Accounts Accounts
	Logger   *slog.Logger
	Location *time.Location
}

// Server holds the handlers.
type Server struct {
	bookings Bookings
	accounts Accounts
	logger   *slog.Logger
	loc      *time.Location
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		bookings: deps.Bookings,
		accounts: deps.Accounts,
		logger:   logger.With(slog.String("component", "api")),
		loc:      loc,
	}
}

// Router wires routes and middleware onto a fresh gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "bookingflow"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", AuthMiddleware(s.accounts))
	authed.GET("/me/potential-jobs", s.potentialJobs)
	authed.GET("/bookings", s.userJobs)
	authed.GET("/bookings/history", s.userHistory)

	jobs := authed.Group("/jobs")
	jobs.POST("", s.createJob)
	jobs.GET("/:id", s.getJob)
	jobs.POST("/:id/email", s.storeJobEmail)
	jobs.POST("/:id/accept", s.acceptJob)
	jobs.POST("/:id/accept-with-id", s.acceptJobWithID)
	jobs.POST("/:id/cancel", s.cancelJob)
	jobs.POST("/:id/end", s.endSession)

	admin := jobs.Group("", RequireStaff())
	admin.PATCH("/:id", s.updateJob)
	admin.POST("/:id/no-show", s.customerNoShow)
	admin.POST("/:id/reopen", s.reopenJob)
	admin.POST("/:id/resend-notifications", s.resendNotifications)
	admin.POST("/:id/resend-sms", s.resendSMS)
	admin.POST("/:id/distance", s.updateDistance)

	return r
}
