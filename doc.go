// Package unwrapr drives external decompression and extraction tools so you
// don't have to remember their flags. Point it at an archive file and it
// figures out the compression/container layering, builds a pipeline of the
// right external programs (tar, unzip, 7z, unrar, cpio, zcat, ...), runs them
// with their output wired together, and places the extracted contents into a
// predictably named directory next to where you asked.
//
// The simplest way to use it is to fill out a Config, call New(), and pass
// archive paths to Extract(). Each input is classified, extracted into a
// private staging directory, and then organized: collisions get a numeric
// suffix, single-entry archives are wrapped or renamed per policy, and
// permissions are normalized so the invoking user can actually read what
// came out. With Recursive set, archives found inside the output are
// extracted in place too.
package unwrapr
