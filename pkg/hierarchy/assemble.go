package hierarchy

import (
	"fmt"

	"github.com/user/expdata/pkg/flatten"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
)

// columnBook records the field list of every entity the first time it is
// seen.
type columnBook struct {
	order  []string
	fields map[string][]string
}

func newColumnBook() *columnBook {
	return &columnBook{fields: make(map[string][]string)}
}

func (c *columnBook) see(entity string, fields []string) {
	if _, ok := c.fields[entity]; ok {
		return
	}
	c.order = append(c.order, entity)
	c.fields[entity] = fields
}

func (c *columnBook) flat() []string {
	var out []string
	for _, e := range c.order {
		for _, f := range c.fields[e] {
			out = append(out, e+"."+f)
		}
	}
	return out
}

type assembler struct {
	app   *schema.App
	links *schema.Links
	data  *prefetched
	vars  []VarsColumn
	cols  *columnBook
}

func (a *assembler) session(row *record.Record, withParticipants bool) (*flatten.Node, error) {
	m := a.app.Model(schema.Session)
	fields := m.ExportFields()
	a.cols.see(m.Name, fields)
	n := flatten.NodeFromRecord(m.Project(row, fields))

	id := record.Key(row.Value("id"))
	subs := a.data.subsessions[id]
	children := make([]*flatten.Node, 0, len(subs))
	for _, sub := range subs {
		c, err := a.subsession(sub)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	n.AddBranch(BranchSubsession, children...)

	if withParticipants {
		parts := a.data.partsBySess[id]
		pn := make([]*flatten.Node, 0, len(parts))
		for _, p := range parts {
			pn = append(pn, a.participant(p))
		}
		n.AddBranch(BranchParticipant, pn...)
	}
	return n, nil
}

func (a *assembler) subsession(row *record.Record) (*flatten.Node, error) {
	m := a.app.Model(schema.Subsession)
	fields := m.ExportFields()
	a.cols.see(m.Name, fields)
	n := flatten.NodeFromRecord(m.Project(row, fields))
	a.attachCustom(n, schema.Subsession, row)

	groups := a.data.groups[record.Key(row.Value("id"))]
	children := make([]*flatten.Node, 0, len(groups))
	for _, g := range groups {
		c, err := a.group(g)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	n.AddBranch(BranchGroup, children...)
	return n, nil
}

func (a *assembler) group(row *record.Record) (*flatten.Node, error) {
	m := a.app.Model(schema.Group)
	fields := m.ExportFields()
	a.cols.see(m.Name, fields)
	n := flatten.NodeFromRecord(m.Project(row, fields))
	a.attachCustom(n, schema.Group, row)

	players := a.data.players[record.Key(row.Value("id"))]
	children := make([]*flatten.Node, 0, len(players))
	for _, p := range players {
		c, err := a.player(p)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	n.AddBranch(BranchPlayer, children...)
	return n, nil
}

func (a *assembler) player(row *record.Record) (*flatten.Node, error) {
	m := a.app.Model(schema.Player)
	link := m.ColumnOf("participant")
	fields := m.ExportFields()
	if !contains(fields, link) {
		fields = append(fields, link)
	}
	a.cols.see(m.Name, fields)
	n := flatten.NodeFromRecord(m.Project(row, fields))

	pid := row.Value(link)
	part, ok := a.data.participants[record.Key(pid)]
	if !ok {
		return nil, fmt.Errorf("%w: participant %v of player %v", ErrMissingRelated, pid, row.Value("id"))
	}
	n.SetSingle(BranchParticipant, a.participant(part))
	a.attachCustom(n, schema.Player, row)
	return n, nil
}

func (a *assembler) participant(row *record.Record) *flatten.Node {
	m := a.app.Model(schema.Participant)
	fields := m.ExportFields()
	rec := m.Project(row, fields)

	vars := DecodeVars(row.Value("vars"))
	rec.Set("vars", vars)
	for _, vc := range a.vars {
		rec.Set(vc.Name, vc.Extract(vars))
	}
	a.cols.see(m.Name, rec.Keys())
	return flatten.NodeFromRecord(rec)
}

func (a *assembler) attachCustom(n *flatten.Node, target schema.Entity, parent *record.Record) {
	id := record.Key(parent.Value("id"))
	for _, l := range a.links.For(target) {
		a.cols.see(l.Name(), l.Fields)
		rows := a.data.custom[l.Name()][id]
		children := make([]*flatten.Node, 0, len(rows))
		for _, r := range rows {
			children = append(children, flatten.NodeFromRecord(r.Project(l.Fields)))
		}
		n.AddBranch(l.Name(), children...)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
