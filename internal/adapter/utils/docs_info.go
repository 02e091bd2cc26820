package utils

//run redis
//docker run -p 6379:6379 -d redis

//qdrant, only needed for --index
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//tesseract for OCR
//apt-get install tesseract-ocr

//swagger init
//swag init -g cmd/gochunker/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/gochunker/docs
