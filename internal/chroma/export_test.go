package chroma

// ReadPageSize exposes the source page size to external tests
const ReadPageSize = readPageSize
