// Package pipeline turns the audio captured for each participant into coaching
// feedback once a recording stops.
//
// Every participant is processed on its own: the PCM is transcoded to MP3, the
// player's preferences are resolved, the analysis program runs, and the results
// are delivered by direct message before the analysis is archived. A failure is
// reported to the affected participant only and never stops the others.
package pipeline
