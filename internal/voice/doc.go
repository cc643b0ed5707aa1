// Package voice is the door's rate-limited speech channel.
//
// Every state transition in the access flow wants to say something. Gate
// decides which of those cues actually reach the speaker, in this order:
//
//  1. empty text (silent keys such as "click") is dropped
//  2. a key inside its cooldown window is dropped
//  3. a session-once key (mode_sequential, mode_any, system_ready) that
//     already fired this session is dropped
//  4. text identical to the previous utterance within the duplicate
//     window (3s) is dropped
//
// Accepted cues go onto a bounded queue (capacity 3). When it is full the
// oldest entry is discarded so the newest cue wins and callers never block.
// One worker plays the queue strictly in order.
//
// SpeakImmediate applies the same rules but skips the queue. ForceSpeak
// skips the rules. ResetSessionAnnouncements clears the session-once flags
// and their cooldowns; the orchestrator calls it on an operator mode change,
// never on a routine relock.
//
// Speech synthesis failures are logged and otherwise ignored: losing audio
// must never stall authentication.
package voice
