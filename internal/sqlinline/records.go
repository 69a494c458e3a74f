package sqlinline

const QEnsureProcessRecords = `--sql 3c1f7a52-8d0e-4b6a-9f21-5e7d2c4a8b13
create table if not exists process_records (
  process_id uuid primary key,
  user_id text not null,
  file_name text not null,
  file_type text not null,
  url text not null default '',
  enhanced_file_name text not null default '',
  enhanced_file_type text not null default '',
  enhanced_url text not null default '',
  labels text[] not null default '{}',
  label_details jsonb not null default '[]'::jsonb,
  description text not null default '',
  status text not null,
  client_country text not null default '',
  created_at timestamptz not null,
  processed_at timestamptz not null,
  summary jsonb not null default '{}'::jsonb
);
create index if not exists process_records_created_at_idx on process_records (created_at desc, process_id desc);
`

const QUpsertProcessRecord = `--sql 9a4e6b21-0c7d-4f83-a5b9-61d2e8f3c704
insert into process_records(
  process_id,
  user_id,
  file_name,
  file_type,
  url,
  enhanced_file_name,
  enhanced_file_type,
  enhanced_url,
  labels,
  label_details,
  description,
  status,
  client_country,
  created_at,
  processed_at,
  summary
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::text[],
  $10::jsonb,
  $11::text,
  $12::text,
  $13::text,
  $14::timestamptz,
  $15::timestamptz,
  $16::jsonb
)
on conflict (process_id) do update set
  user_id = excluded.user_id,
  file_name = excluded.file_name,
  file_type = excluded.file_type,
  url = excluded.url,
  enhanced_file_name = excluded.enhanced_file_name,
  enhanced_file_type = excluded.enhanced_file_type,
  enhanced_url = excluded.enhanced_url,
  labels = excluded.labels,
  label_details = excluded.label_details,
  description = excluded.description,
  status = excluded.status,
  client_country = excluded.client_country,
  processed_at = excluded.processed_at,
  summary = excluded.summary;
`

const QSelectProcessRecordByID = `--sql 5d8b2e94-7f1a-4c36-b0e5-a3c9f6d21e87
select
  process_id::text,
  user_id,
  file_name,
  file_type,
  url,
  enhanced_file_name,
  enhanced_file_type,
  enhanced_url,
  labels,
  label_details,
  description,
  status,
  client_country,
  created_at,
  processed_at,
  summary
from process_records
where process_id = $1::uuid
limit 1;
`

const QListProcessRecords = `--sql e27c4f10-6b3d-48a9-9c5e-0f8a1b7d3e62
select
  process_id::text,
  user_id,
  file_name,
  file_type,
  url,
  enhanced_file_name,
  enhanced_file_type,
  enhanced_url,
  labels,
  label_details,
  description,
  status,
  client_country,
  created_at,
  processed_at,
  summary
from process_records
order by created_at desc, process_id desc
limit $1::int offset $2::int;
`
