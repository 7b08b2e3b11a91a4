package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookingflow/auth"
	"bookingflow/booking"
	"bookingflow/lifecycle"
)

func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "job id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := s.accounts.Register(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (s *Server) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := s.accounts.Login(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": newUserResponse(res.User)})
}

func (s *Server) potentialJobs(c *gin.Context) {
	user, _ := currentUser(c)
	jobs, err := s.bookings.PotentialJobs(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newJobResponses(jobs, s.loc)})
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func (s *Server) userJobs(c *gin.Context) {
	userID, ok := queryInt(c, "user_id")
	if !ok {
		return
	}
	viewer, _ := currentUser(c)
	res, err := s.bookings.UserJobs(c.Request.Context(), viewer, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           newUserResponse(res.User),
		"user_type":      string(res.UserType),
		"emergency_jobs": newJobResponses(res.Emergency, s.loc),
		"normal_jobs":    newJobResponses(res.Normal, s.loc),
	})
}

func (s *Server) userHistory(c *gin.Context) {
	userID, ok := queryInt(c, "user_id")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	viewer, _ := currentUser(c)
	res, err := s.bookings.UserHistory(c.Request.Context(), viewer, userID, int(page))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      newUserResponse(res.User),
		"user_type": string(res.UserType),
		"items":     newJobResponses(res.Jobs, s.loc),
		"page":      res.Page,
		"pages":     res.Pages,
		"total":     res.Total,
	})
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	viewer, _ := currentUser(c)
	res, err := s.bookings.Job(c.Request.Context(), viewer, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":         newJobResponse(res.Job, s.loc),
		"assignments": newAssignmentResponses(res.Assignments, s.loc),
	})
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, _ := currentUser(c)
	job, err := s.bookings.Create(c.Request.Context(), user, lifecycle.CreateParams{
		FromLanguageID:       req.FromLanguageID,
		Immediate:            req.Immediate,
		DueDate:              req.DueDate,
		DueTime:              req.DueTime,
		Duration:             req.Duration,
		Categories:           req.JobFor,
		CustomerPhoneType:    req.CustomerPhoneType,
		CustomerPhysicalType: req.CustomerPhysicalType,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJobResponse(job, s.loc))
}

func (s *Server) storeJobEmail(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	var req storeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, _ := currentUser(c)
	job, err := s.bookings.StoreJobEmail(c.Request.Context(), lifecycle.StoreEmailParams{
		JobID:        id,
		UserEmail:    strings.TrimSpace(req.UserEmail),
		Reference:    req.Reference,
		SetAddress:   req.SetAddress,
		Address:      req.Address,
		Instructions: req.Instructions,
		Town:         req.Town,
	}, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job, s.loc))
}

func (s *Server) acceptJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	res, err := s.bookings.Accept(c.Request.Context(), id, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":            newJobResponse(res.Job, s.loc),
		"notified":       res.Notified,
		"potential_jobs": newJobResponses(res.PotentialJobs, s.loc),
	})
}

func (s *Server) acceptJobWithID(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	res, err := s.bookings.AcceptWithID(c.Request.Context(), id, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":      newJobResponse(res.Job, s.loc),
		"message":  res.Message,
		"notified": res.Notified,
	})
}

func (s *Server) cancelJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	res, err := s.bookings.Cancel(c.Request.Context(), id, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": newJobResponse(res.Job, s.loc), "notified": res.Notified})
}

func (s *Server) endSession(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	res, err := s.bookings.EndSession(c.Request.Context(), id, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":      newJobResponse(res.Job, s.loc),
		"changed":  res.Changed,
		"notified": res.Notified,
	})
}

func (s *Server) customerNoShow(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := s.bookings.CustomerNoShow(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job, s.loc))
}

func (s *Server) reopenJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	res, err := s.bookings.Reopen(c.Request.Context(), id, user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": res.JobID, "cloned": res.Cloned, "notified": res.Notified})
}

func (s *Server) resendNotifications(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	sent, err := s.bookings.ResendNotifications(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": sent})
}

func (s *Server) resendSMS(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	sent, err := s.bookings.ResendSMSNotifications(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

func (s *Server) updateDistance(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	var req distanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, _ := currentUser(c)
	err := s.bookings.UpdateDistanceFeed(c.Request.Context(), lifecycle.DistanceFeed{
		JobID:           id,
		Distance:        req.Distance,
		Time:            req.Time,
		SessionTime:     req.SessionTime,
		AdminComment:    req.AdminComment,
		Flagged:         req.Flagged,
		ManuallyHandled: req.ManuallyHandled,
		ByAdmin:         req.ByAdmin,
	}, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	params := lifecycle.UpdateParams{
		FromLanguageID:  req.FromLanguageID,
		Status:          booking.Status(req.Status),
		TranslatorID:    req.TranslatorID,
		TranslatorEmail: req.TranslatorEmail,
		AdminComments:   req.AdminComments,
		Reference:       req.Reference,
		SessionTime:     req.SessionTime,
	}
	if req.Due != "" {
		due, err := time.ParseInLocation(dueLayout, req.Due, s.loc)
		if err != nil {
			badRequest(c, "due must look like 2006-01-02 15:04")
			return
		}
		params.Due = &due
	}

	user, _ := currentUser(c)
	ack, err := s.bookings.UpdateJob(c.Request.Context(), id, params, user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": ack.JobID, "notified": ack.Notified})
}
