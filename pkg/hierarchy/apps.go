package hierarchy

import (
	"context"

	"github.com/user/expdata/pkg/flatten"
	"github.com/user/expdata/pkg/record"
	"github.com/user/expdata/pkg/schema"
)

// BuildApps combines the trees of several apps by session code. Every
// session appears once with its own fields and an apps container holding one
// branch of subsessions per app that has data in that session.
func (b *Builder) BuildApps(ctx context.Context, apps []*schema.App, filter SessionFilter) ([]*flatten.Node, error) {
	var order []string
	containers := make(map[string]*flatten.Node)
	sessions := make(map[string]*flatten.Node)

	for _, app := range apps {
		res, err := b.Build(ctx, app, filter)
		if err != nil {
			return nil, err
		}
		for _, sess := range res.Sessions {
			code, _ := sess.Leaf("code")
			key := record.Key(code)

			container, ok := containers[key]
			if !ok {
				container = flatten.NewNode()
				combined := sess.WithoutBranch(BranchSubsession)
				combined.SetSingle(BranchApps, container)
				containers[key] = container
				sessions[key] = combined
				order = append(order, key)
			}

			var subs []*flatten.Node
			if br, ok := sess.Branch(BranchSubsession); ok {
				subs = br.Nodes
			}
			container.AddBranch(app.Name, subs...)
		}
	}

	out := make([]*flatten.Node, 0, len(order))
	for _, key := range order {
		out = append(out, sessions[key])
	}
	return out, nil
}

// SplitApps returns one copy of every combined session per app branch, each
// holding only that app under the apps container. Flattening the copies
// stacks the apps without changing how rows within an app are joined.
func SplitApps(sessions []*flatten.Node) []*flatten.Node {
	var out []*flatten.Node
	for _, sess := range sessions {
		container, ok := sess.Branch(BranchApps)
		if !ok || len(container.Nodes) == 0 {
			out = append(out, sess)
			continue
		}
		for _, app := range container.Nodes[0].Branches() {
			c := flatten.NewNode()
			c.AddBranch(app.Name, app.Nodes...)
			view := sess.WithoutBranch(BranchApps)
			view.SetSingle(BranchApps, c)
			out = append(out, view)
		}
	}
	return out
}
