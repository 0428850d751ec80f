package fileexport

// ScreenWidth is the stride, in bytes, of the framebuffer the emulator
// hands to this package — spec.md's "Screen_WIDTH". The screen
// dimensions provider is an external collaborator (§1); this package
// only needs to know the stride to walk a sub-rectangle of a larger
// framebuffer. Atari800's native screen is 384 pixels wide; embedders
// targeting a different source set this once before opening any writer.
var ScreenWidth = 384
