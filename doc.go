/*

Package rscache is a decoder/parser of a legacy segmented on-disk archive
format used by a long-running game client to distribute assets.

This is not a full game client, only the archive format: mapping
(index id, entry id) pairs to decompressed payload bytes, and decoding
the self-describing reference table that lists the folder/file layout,
per-entry CRCs, versions, and optional whirlpool digests and name
hashes found in some indices.

Layout on disk

A directory holds one data file ("main_file_cache.dat2", optional: its
absence only prevents reads) and a family of index files
("main_file_cache.idxN"). An index file is a flat array of 6-byte
records mapping an entry id to a (size, first block) pair. The data
file is a flat array of 520-byte blocks; an entry's payload is
reassembled by walking a singly-linked chain of blocks starting at that
first block, each block carrying the id of the entry it belongs to, the
index it belongs to, and the position of this block within the chain.

The first 9 bytes of a reassembled payload are a small header naming
the compression codec (none, bzip2, gzip; lzma is recognized but
unsupported) and the compressed/decompressed sizes; the compression
layer in compress.go decodes the remainder accordingly.

The reftable subpackage decodes the reference table, a special entry
whose decompressed payload is itself a versioned, column-major binary
structure describing every folder and file known to one index.

Concurrency

A FileSystem owns its own open file handles and mutates their seek
cursors on every call; it is not safe for concurrent use by multiple
goroutines. Separate FileSystem values opened against the same
directory are independent and may be used concurrently with each
other, provided nothing else is writing to the underlying files.

*/
package rscache
