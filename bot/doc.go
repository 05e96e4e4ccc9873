// Package bot is the plugin runtime shared by every chat transport.
//
// Transports (see package chat) turn protocol messages into Events and hand
// them to a Router together with the Gateway that can answer them. The Router
// runs a single event loop: each event is passed to every plugin in
// registration order and the replies they return are delivered before the
// next event is looked at. Plugins therefore never need their own locking for
// state that is only touched from Handle.
//
// Plugins are plain values wired together in main; there is no discovery or
// registration magic.
package bot
