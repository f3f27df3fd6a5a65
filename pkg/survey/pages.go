package survey

import "fmt"

// FormLayout is a form of a page with its resolved name and options.
type FormLayout struct {
	Name         string
	Render       string
	HeaderLabels []string
	Fields       []string
	Opts         FormOptions
}

// PageLayout is what the page renderer needs for one survey page.
type PageLayout struct {
	Index       int
	Title       string
	LabelSuffix string
	Fields      []string
	Questions   map[string]Question
	FieldForms  map[string]string
	Forms       []FormLayout
}

// Form returns the layout of the form called name.
func (p *PageLayout) Form(name string) (FormLayout, bool) {
	for _, f := range p.Forms {
		if f.Name == name {
			return f, true
		}
	}
	return FormLayout{}, false
}

// Validate checks submitted answers against the page's questions. Unknown
// fields and answers outside the choices are reported.
func (p *PageLayout) Validate(answers map[string]any) error {
	for name, v := range answers {
		q, ok := p.Questions[name]
		if !ok {
			return fmt.Errorf("survey: page %d has no field %q", p.Index, name)
		}
		if !q.Valid(v) {
			return fmt.Errorf("survey: invalid answer %v for %s", v, name)
		}
	}
	return nil
}

// Layout resolves the forms of every page. Unnamed forms are called
// form<page>_<n>, counting explicit forms only.
func Layout(pages []Page) ([]*PageLayout, error) {
	out := make([]*PageLayout, 0, len(pages))
	for i, page := range pages {
		pl := &PageLayout{
			Index:       i,
			Title:       page.Title,
			LabelSuffix: page.LabelSuffix,
			Questions:   make(map[string]Question),
			FieldForms:  make(map[string]string),
		}
		names := make(map[string]bool)
		addForm := func(fl FormLayout, questions []Question) error {
			if names[fl.Name] {
				return fmt.Errorf("%w: %s", ErrDuplicateForm, fl.Name)
			}
			names[fl.Name] = true
			for _, q := range questions {
				if _, dup := pl.Questions[q.Name]; dup {
					return fmt.Errorf("%w: %s", ErrDuplicateField, q.Name)
				}
				pl.Questions[q.Name] = q
				pl.Fields = append(pl.Fields, q.Name)
				pl.FieldForms[q.Name] = fl.Name
				fl.Fields = append(fl.Fields, q.Name)
			}
			pl.Forms = append(pl.Forms, fl)
			return nil
		}

		if len(page.Questions) > 0 {
			fl := FormLayout{
				Name:   fmt.Sprintf("form%d_0", i),
				Render: RenderStandard,
				Opts:   DefaultFormOptions().Merge(page.Opts),
			}
			if err := addForm(fl, page.Questions); err != nil {
				return nil, err
			}
		}
		for n, f := range page.Forms {
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("form%d_%d", i, n)
				if len(page.Questions) > 0 {
					name = fmt.Sprintf("form%d_%d", i, n+1)
				}
			}
			render := f.Render
			if render == "" {
				render = RenderStandard
			}
			fl := FormLayout{
				Name:         name,
				Render:       render,
				HeaderLabels: f.HeaderLabels,
				Opts:         DefaultFormOptions().Merge(f.Opts),
			}
			if err := addForm(fl, f.Questions); err != nil {
				return nil, err
			}
		}
		out = append(out, pl)
	}
	return out, nil
}
