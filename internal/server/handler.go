package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"market-relay/internal/model"
	"market-relay/internal/model/enum"
	"market-relay/pkg/exception"
)

type subscriptionQuery struct {
	Stream string `form:"stream" binding:"required"`
	Ticker string `form:"ticker" binding:"required"`
}

func (q subscriptionQuery) subscription() (model.Subscription, error) {
	class, ok := enum.ParseEventClass(q.Stream)
	if !ok {
		return model.Subscription{}, errors.Wrapf(exception.ErrInvalidArgument, "unknown stream %q", q.Stream)
	}
	sub := model.Subscription{Class: class, Ticker: strings.TrimSpace(q.Ticker)}
	if !sub.IsValid() {
		return model.Subscription{}, errors.Wrap(exception.ErrInvalidArgument, "empty ticker")
	}
	return sub, nil
}

type commandResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Params string `json:"params,omitempty"`
}

type stateResponse struct {
	State         string   `json:"state"`
	Subscriptions []string `json:"subscriptions"`
	InFlight      int64    `json:"in_flight"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (s *Server) subscribe(c *gin.Context) {
	s.subscription(c, model.NewSubscribeCommand)
}

func (s *Server) unsubscribe(c *gin.Context) {
	s.subscription(c, model.NewUnsubscribeCommand)
}

func (s *Server) subscription(c *gin.Context, newCommand func(model.Subscription) model.Command) {
	var q subscriptionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stream and ticker are required"})
		return
	}
	sub, err := q.subscription()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.publish(c, newCommand(sub))
}

func (s *Server) stop(c *gin.Context) {
	s.publish(c, model.NewStopCommand())
}

func (s *Server) publish(c *gin.Context, cmd model.Command) {
	if err := s.pub.TryPublish(cmd); err != nil {
		logs.Warnf("reject %s command, err: %+v", cmd.Kind, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	resp := commandResponse{ID: cmd.ID.String(), Kind: cmd.Kind.String()}
	if action, ok := cmd.Action(); ok {
		resp.Params = action.Params
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) state(c *gin.Context) {
	resp := stateResponse{Subscriptions: []string{}}
	if s.opt.Session != nil {
		resp.State = s.opt.Session.State().String()
		for _, sub := range s.opt.Session.Subscriptions().List() {
			resp.Subscriptions = append(resp.Subscriptions, sub.String())
		}
	}
	if s.opt.InFlight != nil {
		resp.InFlight = s.opt.InFlight.InFlight()
	}
	c.JSON(http.StatusOK, resp)
}
