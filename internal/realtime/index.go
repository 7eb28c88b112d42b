package realtime

// subscriptionIndex maps teams, blocks and users to the connections
// interested in them. It has no lock of its own; the Registry guards it.
type subscriptionIndex struct {
	byTeam  map[string]map[*Connection]struct{}
	byBlock map[string]map[*Connection]struct{}
	byUser  map[string]map[*Connection]struct{}
}

func newSubscriptionIndex() *subscriptionIndex {
	return &subscriptionIndex{
		byTeam:  make(map[string]map[*Connection]struct{}),
		byBlock: make(map[string]map[*Connection]struct{}),
		byUser:  make(map[string]map[*Connection]struct{}),
	}
}

func addTo(m map[string]map[*Connection]struct{}, key string, c *Connection) {
	set, ok := m[key]
	if !ok {
		set = make(map[*Connection]struct{})
		m[key] = set
	}
	set[c] = struct{}{}
}

func removeFrom(m map[string]map[*Connection]struct{}, key string, c *Connection) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m, key)
	}
}

func snapshot(m map[string]map[*Connection]struct{}, key string) []*Connection {
	set := m[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (x *subscriptionIndex) addTeam(teamID string, c *Connection) {
	addTo(x.byTeam, teamID, c)
	c.teams[teamID] = struct{}{}
}

func (x *subscriptionIndex) removeTeam(teamID string, c *Connection) {
	removeFrom(x.byTeam, teamID, c)
	delete(c.teams, teamID)
}

func (x *subscriptionIndex) addBlock(blockID string, c *Connection) {
	addTo(x.byBlock, blockID, c)
	c.blocks[blockID] = struct{}{}
}

func (x *subscriptionIndex) removeBlock(blockID string, c *Connection) {
	removeFrom(x.byBlock, blockID, c)
	delete(c.blocks, blockID)
}

func (x *subscriptionIndex) addUser(userID string, c *Connection) {
	addTo(x.byUser, userID, c)
}

func (x *subscriptionIndex) removeUser(userID string, c *Connection) {
	removeFrom(x.byUser, userID, c)
}

func (x *subscriptionIndex) connectionsForTeam(teamID string) []*Connection {
	return snapshot(x.byTeam, teamID)
}

func (x *subscriptionIndex) connectionsForBlock(blockID string) []*Connection {
	return snapshot(x.byBlock, blockID)
}

func (x *subscriptionIndex) connectionsForUser(userID string) []*Connection {
	return snapshot(x.byUser, userID)
}

// allUsers returns every authenticated connection.
func (x *subscriptionIndex) allUsers() []*Connection {
	var out []*Connection
	for _, set := range x.byUser {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

// contains reports whether c appears anywhere in the index.
func (x *subscriptionIndex) contains(c *Connection) bool {
	for _, m := range []map[string]map[*Connection]struct{}{x.byTeam, x.byBlock, x.byUser} {
		for _, set := range m {
			if _, ok := set[c]; ok {
				return true
			}
		}
	}
	return false
}
