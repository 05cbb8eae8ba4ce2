package errors

var (
	ErrParticipantsRequired = InvalidArg("Exactly two participants required")
	ErrParticipantUID       = InvalidArg("every participant needs a uid")
	ErrParticipantsDistinct = InvalidArg("participants must be two different users")
	ErrUnknownChatType      = InvalidArg("unknown chat type")
	ErrTextRequired         = InvalidArg("Text is required")
	ErrChatIDRequired       = InvalidArg("chat id is required")
	ErrInvalidPageToken     = InvalidArg("invalid page token")
	ErrChatNotFound         = NotFound("Chat not found")
	ErrOnetimeChatUsed      = Forbidden("Can't send multiple messages to a one-time chat.")
	ErrMissingToken         = Unauthorized("Missing or invalid Authorization header")
	ErrInvalidToken         = Unauthorized("Unauthorized")
)
