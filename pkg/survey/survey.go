// Package survey declares questionnaire pages as data and derives from them
// the player model that stores the answers.
package survey

import (
	"errors"
	"fmt"

	"github.com/user/expdata/pkg/schema"
)

var (
	ErrDuplicateField  = errors.New("survey: duplicate field name")
	ErrDuplicateForm   = errors.New("survey: duplicate form name")
	ErrHelpTextsLength = errors.New("survey: number of help texts must equal number of questions")
)

// Render types of a form.
const (
	RenderStandard = "standard"
	RenderTable    = "table"
)

// Widgets understood by the page renderer.
const (
	WidgetRadioSelect           = "radio_select"
	WidgetRadioSelectHorizontal = "radio_select_horizontal"
)

// Choice is one selectable answer.
type Choice struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Question is one survey field.
type Question struct {
	Name          string            `json:"name" yaml:"name"`
	Label         string            `json:"label" yaml:"label"`
	Type          schema.FieldType  `json:"type,omitempty" yaml:"type,omitempty"`
	Choices       []Choice          `json:"choices,omitempty" yaml:"choices,omitempty"`
	Widget        string            `json:"widget,omitempty" yaml:"widget,omitempty"`
	HelpText      string            `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	HelpTextBelow bool              `json:"help_text_below,omitempty" yaml:"help_text_below,omitempty"`
	MakeLabelTag  bool              `json:"make_label_tag,omitempty" yaml:"make_label_tag,omitempty"`
	InputPrefix   string            `json:"input_prefix,omitempty" yaml:"input_prefix,omitempty"`
	InputSuffix   string            `json:"input_suffix,omitempty" yaml:"input_suffix,omitempty"`
	WidgetAttrs   map[string]string `json:"widget_attrs,omitempty" yaml:"widget_attrs,omitempty"`
	Condition     string            `json:"condition_javascript,omitempty" yaml:"condition_javascript,omitempty"`
}

// Field returns the model field storing the answer.
func (q Question) Field() schema.Field {
	t := q.Type
	if t == "" {
		t = schema.TypeString
	}
	return schema.Field{Name: q.Name, Type: t, Doc: q.Label}
}

// Valid reports whether v is an allowed answer. Questions without choices
// accept anything.
func (q Question) Valid(v any) bool {
	if len(q.Choices) == 0 {
		return true
	}
	for _, c := range q.Choices {
		if fmt.Sprint(c.Value) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// Likert is a scale from 1 to len(Labels).
type Likert struct {
	Labels []string
	Widget string
}

// NewLikert returns a Likert scale rendered horizontally unless widget is set.
func NewLikert(labels []string, widget string) Likert {
	if widget == "" {
		widget = WidgetRadioSelectHorizontal
	}
	return Likert{Labels: labels, Widget: widget}
}

// Choices returns 1..n with the scale labels.
func (l Likert) Choices() []Choice {
	out := make([]Choice, len(l.Labels))
	for i, lbl := range l.Labels {
		out[i] = Choice{Value: i + 1, Label: lbl}
	}
	return out
}

// Question returns an integer question on this scale.
func (l Likert) Question(name, label string) Question {
	return Question{Name: name, Label: label, Type: schema.TypeInt, Choices: l.Choices(), Widget: l.Widget}
}

// TableOptions configure a Likert table form.
type TableOptions struct {
	FormName     string
	HelpTexts    []string
	Widget       string
	MakeLabelTag bool
	// Choices replaces the numeric scale with string answers; the header
	// shows their labels.
	Choices []Choice
	Opts    FormOptions
}

// LikertTable builds a table form with one row per question. questions are
// (field name, label) pairs.
func LikertTable(labels []string, questions [][2]string, opts TableOptions) (Form, error) {
	help := opts.HelpTexts
	if len(help) == 0 {
		help = make([]string, len(questions))
	}
	if len(help) != len(questions) {
		return Form{}, fmt.Errorf("%w: %d help texts for %d questions", ErrHelpTextsLength, len(help), len(questions))
	}
	widget := opts.Widget
	if widget == "" {
		widget = WidgetRadioSelect
	}

	form := Form{Name: opts.FormName, Render: RenderTable, Opts: opts.Opts}
	var build func(name, label string) Question
	if len(opts.Choices) == 0 {
		scale := NewLikert(labels, widget)
		build = scale.Question
		form.HeaderLabels = labels
	} else {
		for _, c := range opts.Choices {
			form.HeaderLabels = append(form.HeaderLabels, c.Label)
		}
		build = func(name, label string) Question {
			return Question{Name: name, Label: label, Type: schema.TypeString, Choices: opts.Choices, Widget: widget}
		}
	}
	for i, q := range questions {
		question := build(q[0], q[1])
		question.HelpText = help[i]
		question.MakeLabelTag = opts.MakeLabelTag
		form.Questions = append(form.Questions, question)
	}
	return form, nil
}

// FormOptions are the rendering options of a form.
type FormOptions struct {
	HelpInitial            string `json:"form_help_initial,omitempty" yaml:"form_help_initial,omitempty"`
	HelpFinal              string `json:"form_help_final,omitempty" yaml:"form_help_final,omitempty"`
	RepeatHeaderEveryNRows int    `json:"table_repeat_header_each_n_rows,omitempty" yaml:"table_repeat_header_each_n_rows,omitempty"`
	RowHeaderWidthPct      int    `json:"table_row_header_width_pct,omitempty" yaml:"table_row_header_width_pct,omitempty"`
	ColsEqualWidth         *bool  `json:"table_cols_equal_width,omitempty" yaml:"table_cols_equal_width,omitempty"`
	RowsEqualHeight        *bool  `json:"table_rows_equal_height,omitempty" yaml:"table_rows_equal_height,omitempty"`
	RowsAlternate          *bool  `json:"table_rows_alternate,omitempty" yaml:"table_rows_alternate,omitempty"`
	RowsHighlight          *bool  `json:"table_rows_highlight,omitempty" yaml:"table_rows_highlight,omitempty"`
	RowsRandomize          *bool  `json:"table_rows_randomize,omitempty" yaml:"table_rows_randomize,omitempty"`
	CellsHighlight         *bool  `json:"table_cells_highlight,omitempty" yaml:"table_cells_highlight,omitempty"`
	CellsClickable         *bool  `json:"table_cells_clickable,omitempty" yaml:"table_cells_clickable,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultFormOptions are applied to every form before its own options.
func DefaultFormOptions() FormOptions {
	return FormOptions{
		RowHeaderWidthPct: 25,
		ColsEqualWidth:    boolPtr(true),
		RowsEqualHeight:   boolPtr(true),
		RowsAlternate:     boolPtr(true),
		RowsHighlight:     boolPtr(true),
		RowsRandomize:     boolPtr(false),
		CellsHighlight:    boolPtr(true),
		CellsClickable:    boolPtr(true),
	}
}

// Merge returns o with the options set in over applied.
func (o FormOptions) Merge(over FormOptions) FormOptions {
	if over.HelpInitial != "" {
		o.HelpInitial = over.HelpInitial
	}
	if over.HelpFinal != "" {
		o.HelpFinal = over.HelpFinal
	}
	if over.RepeatHeaderEveryNRows != 0 {
		o.RepeatHeaderEveryNRows = over.RepeatHeaderEveryNRows
	}
	if over.RowHeaderWidthPct != 0 {
		o.RowHeaderWidthPct = over.RowHeaderWidthPct
	}
	for _, p := range []struct{ dst, src **bool }{
		{&o.ColsEqualWidth, &over.ColsEqualWidth},
		{&o.RowsEqualHeight, &over.RowsEqualHeight},
		{&o.RowsAlternate, &over.RowsAlternate},
		{&o.RowsHighlight, &over.RowsHighlight},
		{&o.RowsRandomize, &over.RowsRandomize},
		{&o.CellsHighlight, &over.CellsHighlight},
		{&o.CellsClickable, &over.CellsClickable},
	} {
		if *p.src != nil {
			*p.dst = *p.src
		}
	}
	return o
}

// Form groups questions rendered together.
type Form struct {
	Name         string      `json:"form_name,omitempty" yaml:"form_name,omitempty"`
	Render       string      `json:"render_type,omitempty" yaml:"render_type,omitempty"`
	HeaderLabels []string    `json:"header_labels,omitempty" yaml:"header_labels,omitempty"`
	Questions    []Question  `json:"fields" yaml:"fields"`
	Opts         FormOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// Page is one survey page. Loose Questions are collected in a standard form
// placed before the explicit Forms.
type Page struct {
	Title       string      `json:"page_title" yaml:"page_title"`
	LabelSuffix string      `json:"form_label_suffix,omitempty" yaml:"form_label_suffix,omitempty"`
	Questions   []Question  `json:"survey_fields,omitempty" yaml:"survey_fields,omitempty"`
	Forms       []Form      `json:"forms,omitempty" yaml:"forms,omitempty"`
	Opts        FormOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// Questions returns every question of the pages in order.
func Questions(pages []Page) []Question {
	var out []Question
	for _, p := range pages {
		out = append(out, p.Questions...)
		for _, f := range p.Forms {
			out = append(out, f.Questions...)
		}
	}
	return out
}

// BuildPlayerModel returns the player model of app with one field per survey
// question and the extra fields appended. All of them are exported.
func BuildPlayerModel(app string, pages []Page, extra ...schema.Field) (*schema.Model, error) {
	var base *schema.Model
	for _, m := range schema.StandardModels(app) {
		if m.Entity == schema.Player {
			base = m
		}
	}

	seen := make(map[string]bool)
	for _, f := range base.Fields {
		seen[f.Name] = true
	}
	for _, r := range base.Remaps {
		seen[r.Field] = true
	}
	add := func(f schema.Field) error {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = true
		base.Fields = append(base.Fields, f)
		base.Export = append(base.Export, f.Name)
		return nil
	}
	for _, q := range Questions(pages) {
		if err := add(q.Field()); err != nil {
			return nil, err
		}
	}
	for _, f := range extra {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}
