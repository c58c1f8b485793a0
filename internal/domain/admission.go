package domain

import (
	"context"
	"time"
)

// ============================================================================
// Action Interfaces - 准入处理链
// ============================================================================

// AdmitAction is one step of the admission chain.
type AdmitAction interface {
	Name() string
	Handle(*AdmitContext)
}

// ============================================================================
// AdmitContext - 用于预约准入流程
// ============================================================================

// AdmitContext carries a candidate reservation through the admission chain.
type AdmitContext struct {
	context.Context

	// 输入
	Request CreateRequest

	// 中间结果
	Now      time.Time     // instant the pastness check compared against
	Existing []Reservation // snapshot taken inside the resource critical section
	Conflict *Reservation  // first overlapping reservation, if any

	// 输出
	Reservation *Reservation

	// 链式控制
	index   int
	aborted bool
	err     error
	actions []AdmitAction
}

// NewAdmitContext creates an AdmitContext for req.
func NewAdmitContext(ctx context.Context, req CreateRequest) *AdmitContext {
	return &AdmitContext{
		Context: ctx,
		Request: req,
	}
}

// Next runs the remaining actions. An action that calls Next runs the rest
// of the chain before it returns, so state it holds (a lock) spans them.
func (c *AdmitContext) Next() {
	c.index++
	for c.index < len(c.actions) {
		if c.aborted {
			return
		}

		c.actions[c.index].Handle(c)
		c.index++
	}
}

// Abort stops the chain without an error.
func (c *AdmitContext) Abort() {
	c.aborted = true
}

// IsAborted reports whether the chain was stopped.
func (c *AdmitContext) IsAborted() bool {
	return c.aborted
}

// SetError records err and stops the chain.
func (c *AdmitContext) SetError(err error) {
	c.err = err
	c.aborted = true
}

// Error returns the error that stopped the chain.
func (c *AdmitContext) Error() error {
	return c.err
}

// Result returns the admitted reservation or the rejection.
func (c *AdmitContext) Result() (Reservation, error) {
	if c.err != nil {
		return Reservation{}, c.err
	}
	if c.Reservation == nil {
		return Reservation{}, ErrAdmissionIncomplete
	}
	return *c.Reservation, nil
}

// ============================================================================
// Action Chain
// ============================================================================

// AdmissionChain 管理 AdmitAction 处理器链
type AdmissionChain struct {
	actions []AdmitAction
}

// NewAdmissionChain creates an empty chain.
func NewAdmissionChain() *AdmissionChain {
	return &AdmissionChain{
		actions: []AdmitAction{},
	}
}

// Use appends actions to the chain.
func (chain *AdmissionChain) Use(actions ...AdmitAction) *AdmissionChain {
	chain.actions = append(chain.actions, actions...)
	return chain
}

// Names lists the actions in execution order.
func (chain *AdmissionChain) Names() []string {
	names := make([]string, 0, len(chain.actions))
	for _, a := range chain.actions {
		names = append(names, a.Name())
	}
	return names
}

// Run executes the chain from the first action.
func (chain *AdmissionChain) Run(c *AdmitContext) {
	c.actions = chain.actions
	c.index = -1
	c.Next()
}
