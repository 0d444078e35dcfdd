package gitbug

// A Project groups the bugs of a single repository.
type Project struct {
	PID string

	bugs map[string]*Bug
	bids []string
}

func newProject(pid string) *Project {
	return &Project{
		PID:  pid,
		bugs: make(map[string]*Bug),
	}
}

func (p *Project) addBug(bug *Bug) {
	bid := bug.BID()
	if _, exists := p.bugs[bid]; !exists {
		p.bids = append(p.bids, bid)
	}
	p.bugs[bid] = bug
}

// Bug returns the bug with the given id, or nil if the project has none.
func (p *Project) Bug(bid string) *Bug {
	return p.bugs[bid]
}

// BugIDs returns the project's bug ids in dataset order.
func (p *Project) BugIDs() []string {
	return append([]string(nil), p.bids...)
}

// Bugs returns the project's bugs in dataset order.
func (p *Project) Bugs() []*Bug {
	bugs := make([]*Bug, 0, len(p.bids))
	for _, bid := range p.bids {
		bugs = append(bugs, p.bugs[bid])
	}
	return bugs
}
