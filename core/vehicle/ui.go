package vehicle

// UIState values pushed to the head unit as the conversation moves through
// its states.
type UIState string

const (
	UIStateIdle       UIState = "idle"
	UIStateListening  UIState = "listening"
	UIStateProcessing UIState = "processing"
	UIStateSpeaking   UIState = "speaking"
)
