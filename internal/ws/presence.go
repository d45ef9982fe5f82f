package ws

import "sort"

// Presence maps online usernames to their single live connection. It is not
// safe for concurrent use; Router serializes access.
type Presence struct {
	byUser map[string]Conn
	byConn map[Conn]string
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[string]Conn),
		byConn: make(map[Conn]string),
	}
}

// Bind marks username online on conn, replacing any earlier connection for
// the same username and any earlier username on the same connection.
func (p *Presence) Bind(username string, conn Conn) {
	if prev, ok := p.byUser[username]; ok && prev != conn {
		delete(p.byConn, prev)
	}
	if prevUser, ok := p.byConn[conn]; ok && prevUser != username {
		delete(p.byUser, prevUser)
	}
	p.byUser[username] = conn
	p.byConn[conn] = username
}

// Unbind removes conn. The username goes offline only if conn is still the
// connection bound to it.
func (p *Presence) Unbind(conn Conn) (string, bool) {
	username, ok := p.byConn[conn]
	if !ok {
		return "", false
	}
	delete(p.byConn, conn)
	if p.byUser[username] == conn {
		delete(p.byUser, username)
	}
	return username, true
}

// Lookup returns the connection bound to username.
func (p *Presence) Lookup(username string) (Conn, bool) {
	conn, ok := p.byUser[username]
	return conn, ok
}

// Online lists online usernames in sorted order.
func (p *Presence) Online() []string {
	names := make([]string, 0, len(p.byUser))
	for name := range p.byUser {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
