// Package delivery sends model replies back to a chat.
//
// A reply is cut into fixed-size segments by Chunk, and each segment goes
// through a Sender that tries rich formatting first and falls back to plain
// text when the transport rejects the markup. A Deliverer drives the two:
// segments are sent in order, only the first one is threaded as a reply, and
// the batch stops at the first terminal outcome.
package delivery
