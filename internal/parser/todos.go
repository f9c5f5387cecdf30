package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/notegraph/internal/models"
)

var (
	taskMarkdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

	checkboxRe = regexp.MustCompile(`^\s*\[[ xX]\]\s*`)
	dueRe      = regexp.MustCompile(`(?:\bdue:(\d{4}-\d{2}-\d{2})|@due\((\d{4}-\d{2}-\d{2})\))`)
)

// ExtractTodos returns the GFM task list items of content ("- [ ] task",
// "- [x] done"). Items inside code blocks are ignored. Line numbers are
// 0-indexed within content.
func ExtractTodos(content, notePath string) []models.TodoItem {
	src := []byte(content)
	doc := taskMarkdown.Parser().Parse(text.NewReader(src))

	var out []models.TodoItem
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		box, ok := n.(*extast.TaskCheckBox)
		if !ok || box.Parent() == nil {
			return ast.WalkContinue, nil
		}
		lines := box.Parent().Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}

		parts := make([]string, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
		}
		task := checkboxRe.ReplaceAllString(strings.Join(parts, " "), "")
		task, due := splitDueDate(task)
		if task == "" {
			return ast.WalkContinue, nil
		}

		out = append(out, models.TodoItem{
			NotePath:  notePath,
			Line:      bytes.Count(src[:lines.At(0).Start], []byte("\n")),
			Task:      task,
			Completed: box.IsChecked,
			DueDate:   due,
		})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func splitDueDate(task string) (string, string) {
	m := dueRe.FindStringSubmatch(task)
	if m == nil {
		return strings.TrimSpace(task), ""
	}
	due := m[1]
	if due == "" {
		due = m[2]
	}
	task = strings.Join(strings.Fields(dueRe.ReplaceAllString(task, "")), " ")
	return task, due
}
