package dietchart

import "errors"

// ErrIndexOutOfRange is returned when a chart position does not address an
// existing entry in the history.
var ErrIndexOutOfRange = errors.New("invalid diet chart index")
