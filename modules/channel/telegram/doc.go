// Package telegram implements the channel.telegram module: the bridge
// between the Telegram Bot API and the relay.
//
// Updates arrive either through a webhook registered with the gateway's
// dispatcher or through long polling. Text messages from allowed users are
// converted to message.InboundMessage and handed to the inbox. Outbound text
// leaves through Deliver, which implements delivery.Transport and maps Bot
// API rejections to the delivery error kinds.
package telegram
