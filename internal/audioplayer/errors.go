package audioplayer

import "errors"

// ErrDecode indicates a single enqueued blob could not be decoded as MP3.
// The worker logs and drops the blob; it does not stop.
var ErrDecode = errors.New("audioplayer: decode failed")

// ErrStreamOpen indicates the output device could not be opened or
// reopened. Unlike ErrDecode, this is fatal to the worker.
var ErrStreamOpen = errors.New("audioplayer: output stream open failed")
