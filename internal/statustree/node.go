// Package statustree models the step/task status tree of an information
// package and reconciles freshly fetched trees into the one on screen.
package statustree

import (
	"strings"
	"time"
)

// Kind distinguishes steps, which may have children, from tasks, which are leaves.
type Kind string

const (
	KindStep Kind = "step"
	KindTask Kind = "task"
)

// Status is the progress state reported by the server.
// Any value other than SUCCESS or FAILURE is in progress.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
	StatusInProgress Status = "IN_PROGRESS"
)

// IsSuccess reports whether the node finished successfully.
func (s Status) IsSuccess() bool {
	return strings.EqualFold(string(s), string(StatusSuccess))
}

// IsFailure reports whether the node failed.
func (s Status) IsFailure() bool {
	return strings.EqualFold(string(s), string(StatusFailure))
}

// InProgress reports whether the node is neither successful nor failed.
func (s Status) InProgress() bool {
	return !s.IsSuccess() && !s.IsFailure()
}

// Label returns the normalized display label for the status.
func (s Status) Label() string {
	switch {
	case s.IsSuccess():
		return string(StatusSuccess)
	case s.IsFailure():
		return string(StatusFailure)
	default:
		return string(StatusInProgress)
	}
}

// ChildState records whether a step's children have been fetched.
type ChildState string

const (
	// ChildrenNone marks a leaf.
	ChildrenNone ChildState = ""
	// ChildrenPending is the "not yet fetched" sentinel: the node has
	// children on the server that have not been requested.
	ChildrenPending ChildState = "pending"
	// ChildrenLoaded means Children holds the current page.
	ChildrenLoaded ChildState = "loaded"
)

// Node is a step or task in the status tree.
//
// Expanded is local display state; the server never sends it, and the
// reconcilers never change it on a node that already exists.
type Node struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Kind        Kind       `json:"kind" yaml:"kind"`
	User        string     `json:"user,omitempty" yaml:"user,omitempty"`
	TimeStarted *time.Time `json:"time_started,omitempty" yaml:"time_started,omitempty"`
	Status      Status     `json:"status,omitempty" yaml:"status,omitempty"`
	Progress    int        `json:"progress" yaml:"progress"`
	Undone      bool       `json:"undone,omitempty" yaml:"undone,omitempty"`
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`

	Children   []*Node    `json:"children,omitempty" yaml:"children,omitempty"`
	ChildState ChildState `json:"child_state,omitempty" yaml:"child_state,omitempty"`

	// Pagination of Children. NextPage and PrevPage are 0 when there is
	// no such page.
	PageNumber int `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	NextPage   int `json:"next_page,omitempty" yaml:"next_page,omitempty"`
	PrevPage   int `json:"prev_page,omitempty" yaml:"prev_page,omitempty"`

	Expanded bool `json:"expanded,omitempty" yaml:"expanded,omitempty"`
}

// IsStep reports whether the node can have children.
func (n *Node) IsStep() bool {
	return n.Kind == KindStep
}

// NotFetched reports whether the node carries the pending-children sentinel.
func (n *Node) NotFetched() bool {
	return n.ChildState == ChildrenPending
}

// HasLoadedChildren reports whether n holds a non-empty fetched child page.
func (n *Node) HasLoadedChildren() bool {
	return n.ChildState == ChildrenLoaded && len(n.Children) > 0
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.TimeStarted != nil {
		t := *n.TimeStarted
		c.TimeStarted = &t
	}
	c.Children = Clone(n.Children)
	return &c
}

// Clone returns a deep copy of tree.
func Clone(tree []*Node) []*Node {
	if tree == nil {
		return nil
	}
	out := make([]*Node, len(tree))
	for i, n := range tree {
		out[i] = n.Clone()
	}
	return out
}
