// Package transcription defines the transcription provider interface and
// common types for interacting with speech-to-text backends.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar
//
// # Usage
//
//	reg := provider.NewRegistry[transcription.Provider]()
//	reg.Register(whisper.NewProvider(cfg))
package transcription
