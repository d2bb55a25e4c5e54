// Package relay implements namespace-isolated websocket pub/sub.
//
// Clients connect to /ws (the root namespace) or /ws/{namespace}. Admission is
// decided by an auth.Gate before the upgrade; rejected clients receive 401.
// Every text frame is a JSON envelope:
//
//	{"event": "join", "data": "lobby"}
//	{"event": "leave", "data": "lobby"}
//	{"event": "message", "data": {"room": "lobby", "data": {"text": "hi"}}}
//	{"event": "message", "data": {"text": "to everyone in the namespace"}}
//
// A message whose payload names a room is delivered to the other members of
// that room; any other message is delivered to every other connection in the
// namespace. The sender never receives its own message. The server answers
// join and leave with "joined" and "left", and answers actions over the rate
// limit with "rate_limited".
//
// Each connection has one dispatch goroutine so a client's actions apply in
// the order they arrived. Outbound delivery never blocks: a full client queue
// drops the frame.
package relay
