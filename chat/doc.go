// Package chat contains the network transports that feed the bot's router.
//
// It provides two transports:
//   - IRC: a classic IRC client (TLS and SASL PLAIN optional) that joins
//     IRC_CHANNELS once registered and maps PRIVMSG, JOIN, PART, QUIT, KICK,
//     NICK, TOPIC and MODE onto bot events.
//   - Twitch: Twitch chat over its IRC gateway. Twitch has neither notices nor
//     direct messages, so replies of those kinds are posted as "@nick text" in
//     the channel the triggering event came from.
//
// Both reconnect with exponential backoff until their context is canceled and
// report their connection state through the transport_up gauge.
package chat
