package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/expdata/pkg/schema"
)

var agree = []string{"Strongly disagree", "Disagree", "Agree", "Strongly agree"}

func TestLikertQuestion(t *testing.T) {
	q := NewLikert(agree, "").Question("q1", "I like surveys")
	assert.Equal(t, schema.TypeInt, q.Type)
	assert.Equal(t, WidgetRadioSelectHorizontal, q.Widget)
	require.Len(t, q.Choices, 4)
	assert.Equal(t, Choice{Value: 1, Label: "Strongly disagree"}, q.Choices[0])
	assert.True(t, q.Valid(4))
	assert.True(t, q.Valid("2"))
	assert.False(t, q.Valid(5))
}

func TestLikertTable(t *testing.T) {
	questions := [][2]string{{"q_a", "A"}, {"q_b", "B"}}

	form, err := LikertTable(agree, questions, TableOptions{FormName: "tbl", HelpTexts: []string{"ha", "hb"}})
	require.NoError(t, err)
	assert.Equal(t, RenderTable, form.Render)
	assert.Equal(t, agree, form.HeaderLabels)
	require.Len(t, form.Questions, 2)
	assert.Equal(t, "hb", form.Questions[1].HelpText)
	assert.Equal(t, WidgetRadioSelect, form.Questions[0].Widget)

	_, err = LikertTable(agree, questions, TableOptions{HelpTexts: []string{"only one"}})
	assert.ErrorIs(t, err, ErrHelpTextsLength)

	yesNo := []Choice{{Value: "y", Label: "Yes"}, {Value: "n", Label: "No"}}
	form, err = LikertTable(nil, questions, TableOptions{Choices: yesNo})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No"}, form.HeaderLabels)
	assert.Equal(t, schema.TypeString, form.Questions[0].Type)
}

func pages(t *testing.T) []Page {
	table, err := LikertTable(agree, [][2]string{{"q_a", "A"}, {"q_b", "B"}}, TableOptions{})
	require.NoError(t, err)
	return []Page{
		{
			Title: "About you",
			Questions: []Question{
				{Name: "age", Label: "How old are you?", Type: schema.TypeInt},
				{Name: "gender", Label: "Gender", Choices: []Choice{{"f", "female"}, {"m", "male"}, {"x", "other"}}},
			},
		},
		{Title: "Opinions", Forms: []Form{table}},
	}
}

func TestBuildPlayerModel(t *testing.T) {
	m, err := BuildPlayerModel("survey", pages(t), schema.Field{Name: "treatment", Type: schema.TypeString})
	require.NoError(t, err)
	assert.Equal(t, "survey_player", m.Table)
	assert.Equal(t, []string{"id_in_group", "role", "payoff", "age", "gender", "q_a", "q_b", "treatment"}, m.ExportFields())

	app := schema.NewApp("survey")
	require.NoError(t, app.SetModel(m))
	assert.True(t, app.Model(schema.Player).HasField("q_b"))
}

func TestBuildPlayerModelDuplicates(t *testing.T) {
	p := pages(t)
	p[1].Forms[0].Questions[1].Name = "age"
	_, err := BuildPlayerModel("survey", p)
	assert.ErrorIs(t, err, ErrDuplicateField)

	_, err = BuildPlayerModel("survey", pages(t), schema.Field{Name: "payoff"})
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestLayout(t *testing.T) {
	layouts, err := Layout(pages(t))
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	first := layouts[0]
	assert.Equal(t, []string{"age", "gender"}, first.Fields)
	assert.Equal(t, "form0_0", first.FieldForms["gender"])
	f, ok := first.Form("form0_0")
	require.True(t, ok)
	assert.Equal(t, 25, f.Opts.RowHeaderWidthPct)

	second := layouts[1]
	assert.Equal(t, "form1_0", second.FieldForms["q_a"])
	assert.Equal(t, RenderTable, second.Forms[0].Render)

	assert.NoError(t, first.Validate(map[string]any{"age": 30, "gender": "x"}))
	assert.Error(t, first.Validate(map[string]any{"gender": "z"}))
	assert.Error(t, first.Validate(map[string]any{"q_a": 1}))
}

func TestLayoutDuplicateForm(t *testing.T) {
	p := pages(t)
	p[1].Forms = append(p[1].Forms, Form{Name: "form1_0", Questions: []Question{{Name: "extra"}}})
	_, err := Layout(p)
	assert.ErrorIs(t, err, ErrDuplicateForm)
}

func TestFormOptionsMerge(t *testing.T) {
	off := false
	o := DefaultFormOptions().Merge(FormOptions{RowsRandomize: boolPtr(true), CellsClickable: &off, HelpFinal: "bye"})
	assert.True(t, *o.RowsRandomize)
	assert.False(t, *o.CellsClickable)
	assert.True(t, *o.RowsHighlight)
	assert.Equal(t, "bye", o.HelpFinal)
}
