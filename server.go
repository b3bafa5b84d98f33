package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/debugger"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/fansqz/inspector-debugger/protocol"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// StatusServer 调试会话的HTTP状态接口
type StatusServer struct {
	app       *fiber.App
	inspector *Inspector
}

func NewStatusServer(inspector *Inspector) *StatusServer {
	s := &StatusServer{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
		inspector: inspector,
	}
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/scripts", s.handleScripts)
	s.app.Get("/paused", s.handlePaused)
	s.app.Post("/pause", s.handlePause)
	s.app.Post("/resume", s.handleResume)
	s.app.Post("/step/:type", s.handleStep)
	s.app.Post("/skip-pauses", s.handleSkipPauses)
	return s
}

// Serve 在listener上提供服务，ctx结束时关闭
func (s *StatusServer) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			logrus.Warnf("[HTTP] shutdown fail, err = %v", err)
		}
	}()
	logrus.Infof("[HTTP] listening at %s", listener.Addr())
	return s.app.Listener(listener)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, e.ErrDebuggerNotPaused), errors.Is(err, e.ErrDebuggerNotEnabled):
		code = fiber.StatusConflict
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// call 在会话协程中执行task，task返回的错误作为请求的错误
func (s *StatusServer) call(c *fiber.Ctx, task func(model *debugger.DebuggerModel) error) error {
	model := s.inspector.Model()
	var taskErr error
	if err := s.inspector.Call(c.UserContext(), func() {
		taskErr = task(model)
	}); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return taskErr
}

type statusView struct {
	Target    string                    `json:"target"`
	Enabled   bool                      `json:"enabled"`
	Paused    bool                      `json:"paused"`
	Pausing   bool                      `json:"pausing"`
	Lifecycle constants.LifecycleStatus `json:"lifecycle"`
	Scripts   int                       `json:"scripts"`
}

func (s *StatusServer) handleStatus(c *fiber.Ctx) error {
	var view statusView
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		view = statusView{
			Target:    model.Target().ID(),
			Enabled:   model.DebuggerEnabled(),
			Paused:    model.IsPaused(),
			Pausing:   model.IsPausing(),
			Lifecycle: model.Status(),
			Scripts:   len(model.Scripts()),
		}
		return nil
	}); err != nil {
		return err
	}
	return c.JSON(view)
}

type scriptView struct {
	ScriptID        string `json:"scriptId"`
	URL             string `json:"url"`
	StartLine       int    `json:"startLine"`
	StartColumn     int    `json:"startColumn"`
	EndLine         int    `json:"endLine"`
	EndColumn       int    `json:"endColumn"`
	Hash            string `json:"hash,omitempty"`
	IsContentScript bool   `json:"isContentScript"`
	IsLiveEdit      bool   `json:"isLiveEdit"`
}

func (s *StatusServer) handleScripts(c *fiber.Ctx) error {
	views := []scriptView{}
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		for _, script := range model.Scripts() {
			views = append(views, scriptView{
				ScriptID:        script.ScriptID,
				URL:             script.SourceURL,
				StartLine:       script.LineOffset,
				StartColumn:     script.ColumnOffset,
				EndLine:         script.EndLine,
				EndColumn:       script.EndColumn,
				Hash:            script.Hash,
				IsContentScript: script.IsContentScript,
				IsLiveEdit:      script.IsLiveEdit,
			})
		}
		return nil
	}); err != nil {
		return err
	}
	return c.JSON(views)
}

type callFrameView struct {
	CallFrameID  string `json:"callFrameId"`
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

type pausedView struct {
	Reason          constants.PauseReason `json:"reason"`
	BreakpointIDs   []string              `json:"breakpointIds"`
	CallFrames      []callFrameView       `json:"callFrames"`
	AsyncStackTrace *protocol.StackTrace  `json:"asyncStackTrace,omitempty"`
}

func (s *StatusServer) handlePaused(c *fiber.Ctx) error {
	var view *pausedView
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		details := model.DebuggerPausedDetails()
		if details == nil {
			return e.ErrDebuggerNotPaused
		}
		view = &pausedView{
			Reason:          details.Reason,
			BreakpointIDs:   details.BreakpointIDs,
			CallFrames:      []callFrameView{},
			AsyncStackTrace: details.AsyncStackTrace,
		}
		for _, callFrame := range details.CallFrames {
			location := callFrame.Location()
			view.CallFrames = append(view.CallFrames, callFrameView{
				CallFrameID:  callFrame.ID(),
				FunctionName: callFrame.FunctionName(),
				ScriptID:     location.ScriptID,
				URL:          callFrame.Script().SourceURL,
				LineNumber:   location.LineNumber,
				ColumnNumber: location.ColumnNumber,
			})
		}
		return nil
	}); err != nil {
		return err
	}
	return c.JSON(view)
}

func (s *StatusServer) handlePause(c *fiber.Ctx) error {
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		if !model.DebuggerEnabled() {
			return e.ErrDebuggerNotEnabled
		}
		model.Pause()
		return nil
	}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *StatusServer) handleResume(c *fiber.Ctx) error {
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		if !model.IsPaused() {
			return e.ErrDebuggerNotPaused
		}
		model.Resume()
		return nil
	}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *StatusServer) handleStep(c *fiber.Ctx) error {
	stepType := constants.StepType(c.Params("type"))
	switch stepType {
	case constants.StepIn, constants.StepOver, constants.StepOut:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown step type "+string(stepType))
	}
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		if !model.IsPaused() {
			return e.ErrDebuggerNotPaused
		}
		model.Step(stepType)
		return nil
	}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// handleSkipPauses 没有timeout参数时使用配置中的skipAllPausesTimeout
func (s *StatusServer) handleSkipPauses(c *fiber.Ctx) error {
	timeout := s.inspector.Settings().SkipAllPausesTimeout()
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		timeout = parsed
	}
	if timeout <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "timeout must be positive")
	}
	if err := s.call(c, func(model *debugger.DebuggerModel) error {
		model.SkipAllPausesUntilReloadOrTimeout(timeout)
		return nil
	}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"timeout": timeout.String()})
}
