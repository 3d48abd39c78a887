// Package translate turns cast names and roles into the configured target
// language.
//
// A Translator consults a persistent bbolt cache first, then walks its tiers
// in order (fast batch, transliteration, contextual by default). Each tier
// only receives the terms the previous tier failed on, and a term counts as
// translated only when the result contains a rune of the target language's
// script. Successful results are cached, tagged with the engine and mode
// that produced them, before the next tier runs.
//
// The cache also keeps a reverse index so a localised display name can be
// mapped back to the original it was produced from.
package translate
