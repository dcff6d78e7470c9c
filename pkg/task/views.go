// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ViewKind selects one of the four read-only task renderings.
type ViewKind int

const (
	// ViewTodo renders "- [x] title", one line per direct child.
	ViewTodo ViewKind = iota
	// ViewDocument renders "# title\noutput", recursing into children up
	// to recursiveLimit, each nesting level demoting its heading.
	ViewDocument
	// ViewRequirement renders the full task brief (type, tags, protocol,
	// input) with each direct child's Document view appended beneath it.
	ViewRequirement
	// ViewJSON renders {title, task_type, tags, sub_tasks:[...]}
	// recursively up to recursiveLimit.
	ViewJSON
)

// Node is the read-only surface a view renders from. Task[S, E]
// implements it for any S, E.
type Node interface {
	Title() string
	TaskType() string
	Tags() []string
	IsCompleted() bool
	Output() string
	Protocol() any
	Input() any
}

// TreeNode is a Node with children. TreeTask[S, E] implements it for any
// S, E.
type TreeNode interface {
	Node
	SubTaskNodes() []TreeNode
}

var headingRe = regexp.MustCompile(`(?m)^(#+)( )`)

func demoteHeadings(s string) string {
	return headingRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := headingRe.FindStringSubmatch(m)
		return "#" + sub[1] + sub[2]
	})
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Render formats n according to kind. recursiveLimit is -1 for unlimited
// depth, 0 to render n alone, or a positive number of levels to descend.
// Only ViewDocument and ViewJSON actually recurse past the first level;
// ViewTodo and ViewRequirement render direct children flat regardless of
// recursiveLimit, matching the reference behavior this package ports.
func Render(n Node, kind ViewKind, recursiveLimit int) (string, error) {
	switch kind {
	case ViewTodo:
		return renderTodo(n), nil
	case ViewDocument:
		return renderDocument(n, recursiveLimit), nil
	case ViewRequirement:
		return renderRequirement(n), nil
	case ViewJSON:
		return renderJSON(n, recursiveLimit)
	default:
		return "", fmt.Errorf("task: unknown view kind %d", kind)
	}
}

func renderTodoLine(n Node) string {
	status := " "
	if n.IsCompleted() {
		status = "x"
	}
	return fmt.Sprintf("- [%s] %s", status, n.Title())
}

func renderTodo(n Node) string {
	view := renderTodoLine(n)
	tn, ok := n.(TreeNode)
	if !ok {
		return view
	}
	var children []string
	for _, sub := range tn.SubTaskNodes() {
		children = append(children, indentLines(renderTodoLine(sub), "\t"))
	}
	if len(children) == 0 {
		return view
	}
	return view + "\n" + strings.Join(children, "\n")
}

func renderDocumentLine(n Node) string {
	return fmt.Sprintf("# %s\n%s", n.Title(), n.Output())
}

func renderDocument(n Node, recursiveLimit int) string {
	view := renderDocumentLine(n)
	tn, ok := n.(TreeNode)
	if !ok || recursiveLimit == 0 {
		return view
	}
	nextLimit := recursiveLimit
	if recursiveLimit > 0 {
		nextLimit = recursiveLimit - 1
	}
	var children []string
	for _, sub := range tn.SubTaskNodes() {
		children = append(children, demoteHeadings(renderDocument(sub, nextLimit)))
	}
	if len(children) == 0 {
		return view
	}
	return view + "\n\n" + strings.Join(children, "\n\n")
}

func renderRequirementLine(n Node) string {
	return fmt.Sprintf(
		"# Task: %s\n- Type: %s\n- Tags: %s\n- Completed: %v\n## Protocol\n%v\n## Input\n%v",
		n.Title(), n.TaskType(), strings.Join(n.Tags(), ", "), n.IsCompleted(), n.Protocol(), n.Input(),
	)
}

func renderRequirement(n Node) string {
	view := renderRequirementLine(n)
	tn, ok := n.(TreeNode)
	if !ok {
		return view
	}
	var children []string
	for _, sub := range tn.SubTaskNodes() {
		children = append(children, demoteHeadings(renderDocumentLine(sub)))
	}
	if len(children) == 0 {
		return view
	}
	return view + "\n\n" + strings.Join(children, "\n\n")
}

type jsonView struct {
	Title    string     `json:"title"`
	TaskType string     `json:"task_type"`
	Tags     []string   `json:"tags"`
	SubTasks []jsonView `json:"sub_tasks"`
}

func buildJSON(n Node, recursiveLimit int) jsonView {
	v := jsonView{Title: n.Title(), TaskType: n.TaskType(), Tags: n.Tags(), SubTasks: []jsonView{}}
	tn, ok := n.(TreeNode)
	if !ok || recursiveLimit == 0 {
		return v
	}
	nextLimit := recursiveLimit
	if recursiveLimit > 0 {
		nextLimit = recursiveLimit - 1
	}
	for _, sub := range tn.SubTaskNodes() {
		v.SubTasks = append(v.SubTasks, buildJSON(sub, nextLimit))
	}
	return v
}

func renderJSON(n Node, recursiveLimit int) (string, error) {
	b, err := json.MarshalIndent(buildJSON(n, recursiveLimit), "", "    ")
	if err != nil {
		return "", fmt.Errorf("task: render json: %w", err)
	}
	return string(b), nil
}
