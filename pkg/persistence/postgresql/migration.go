package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE documents (
				collection VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				source JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (collection, id)
			);

			CREATE INDEX idx_documents_source ON documents USING GIN (source jsonb_path_ops);
			CREATE INDEX idx_documents_created_at ON documents(collection, created_at);
		`,
	}
}
