// Package simulate runs the label engine against an HTML document held in memory,
// stepping it deterministically. It backs `prefixhider simulate`.
package simulate

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"prefixhider/internal/dom"
	"prefixhider/internal/labels"
)

// maxFrames bounds Settle; a healthy engine settles in two or three.
const maxFrames = 64

// Simulator owns a document and an engine driven by a manual clock.
type Simulator struct {
	doc   *dom.Document
	tree  *dom.Tree
	clock *labels.ManualClock
	eng   *labels.Engine
}

// New parses html and starts an engine over it with the given prefixes.
func New(html io.Reader, rootSelector, labelSelector string, prefixes []string) (*Simulator, error) {
	doc, err := dom.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	tree, err := dom.NewTree(doc, rootSelector, labelSelector)
	if err != nil {
		return nil, err
	}
	clock := labels.NewManualClock()
	eng := labels.New(tree, labels.Options{
		Frames: clock,
		Timers: clock,
		Source: labels.StaticPrefixes(prefixes),
	})
	s := &Simulator{doc: doc, tree: tree, clock: clock, eng: eng}
	eng.Start()
	if _, err := s.Settle(); err != nil {
		return nil, err
	}
	return s, nil
}

// Settle delivers mutations and runs frames until the engine is idle.
// It returns the number of frames run.
func (s *Simulator) Settle() (int, error) {
	frames := 0
	for frames < maxFrames {
		s.doc.DeliverMutations()
		if s.clock.PendingFrames() == 0 {
			return frames, nil
		}
		s.clock.RunFrame()
		frames++
	}
	return frames, fmt.Errorf("engine still busy after %d frames", maxFrames)
}

// Texts returns the current text of every label in document order.
func (s *Simulator) Texts() []string {
	out := []string{}
	for _, l := range s.tree.Labels() {
		out = append(out, l.(*dom.Node).Text())
	}
	return out
}

// HTML renders the document.
func (s *Simulator) HTML() (string, error) {
	return s.doc.HTML()
}

// Engine returns the engine.
func (s *Simulator) Engine() *labels.Engine { return s.eng }

// Scenario is a sequence of edits applied to the document, loaded from YAML.
type Scenario struct {
	Steps []Step `yaml:"steps"`
}

// Step is one edit. Exactly one field other than Note should be set.
type Step struct {
	Note     string     `yaml:"note,omitempty"`
	Prefixes *[]string  `yaml:"prefixes,omitempty"`
	SetText  *TextEdit  `yaml:"set_text,omitempty"` // replaces the label's children
	SetData  *TextEdit  `yaml:"set_data,omitempty"` // edits the label's first text node in place
	Append   *AppendOp  `yaml:"append,omitempty"`
	Remove   *LabelRef  `yaml:"remove,omitempty"`
}

// LabelRef addresses a label by its index in document order.
type LabelRef struct {
	Label int `yaml:"label"`
}

// TextEdit sets a label's text.
type TextEdit struct {
	Label int    `yaml:"label"`
	Text  string `yaml:"text"`
}

// AppendOp inserts a new label after the last one, shaped like the first.
type AppendOp struct {
	Text string `yaml:"text"`
}

// StepResult records the state after a step settled.
type StepResult struct {
	Step   int      `json:"step"`
	Note   string   `json:"note,omitempty"`
	Frames int      `json:"frames"`
	Texts  []string `json:"texts"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &sc, nil
}

// Run applies each step, settling after each, and reports the label texts.
func (s *Simulator) Run(sc *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		if err := s.Apply(step); err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		frames, err := s.Settle()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, StepResult{Step: i + 1, Note: step.Note, Frames: frames, Texts: s.Texts()})
	}
	return results, nil
}

// Apply performs one step without settling.
func (s *Simulator) Apply(step Step) error {
	switch {
	case step.Prefixes != nil:
		s.eng.ApplyPrefixes(*step.Prefixes)
	case step.SetText != nil:
		l, err := s.label(step.SetText.Label)
		if err != nil {
			return err
		}
		return l.SetText(step.SetText.Text)
	case step.SetData != nil:
		l, err := s.label(step.SetData.Label)
		if err != nil {
			return err
		}
		for _, c := range l.Children() {
			if c.Type() == dom.TextNode {
				c.SetData(step.SetData.Text)
				return nil
			}
		}
		return fmt.Errorf("label %d has no text node", step.SetData.Label)
	case step.Append != nil:
		return s.appendLabel(step.Append.Text)
	case step.Remove != nil:
		l, err := s.label(step.Remove.Label)
		if err != nil {
			return err
		}
		l.Remove()
	}
	return nil
}

func (s *Simulator) label(i int) (*dom.Node, error) {
	all := s.tree.Labels()
	if i < 0 || i >= len(all) {
		return nil, fmt.Errorf("label %d out of range (have %d)", i, len(all))
	}
	return all[i].(*dom.Node), nil
}

func (s *Simulator) appendLabel(text string) error {
	all := s.tree.Labels()
	if len(all) == 0 {
		return fmt.Errorf("no label to copy the shape of")
	}
	first := all[0].(*dom.Node)
	last := all[len(all)-1].(*dom.Node)
	if last.Parent() == nil {
		return fmt.Errorf("last label is detached")
	}

	el := s.doc.CreateElement(first.Tag())
	if class, ok := first.Attr("class"); ok {
		el.SetAttr("class", class)
	}
	el.AppendChild(s.doc.CreateText(text))
	last.Parent().AppendChild(el)
	return nil
}
