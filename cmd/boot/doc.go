// Package boot implements the "nvboot boot" command, the command-line
// rendition of the image loader's root swap step.
package boot
